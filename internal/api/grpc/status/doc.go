// Package status serves the controller status over gRPC.
//
// The StatusService has a single unary method, GetStatus, taking
// google.protobuf.Empty and returning the status document as a
// google.protobuf.Struct. The service descriptor is declared by hand so no
// generated code is needed. The standard gRPC health service is registered
// alongside and reports NOT_SERVING while the actuator link fails.
package status
