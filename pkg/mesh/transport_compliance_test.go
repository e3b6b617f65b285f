package mesh

// Compile-time assertions that every transport implements Transport.
var (
	_ Transport = (*TransportTCP)(nil)
	_ Transport = (*TransportBLE)(nil)
	_ Transport = (*TransportRFCOMM)(nil)
)
