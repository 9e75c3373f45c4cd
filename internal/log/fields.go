// internal/log/fields.go
package log

// Canonical structured field names.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldBattery   = "battery"
	FieldEndpoint  = "endpoint"
	FieldTransport = "transport"
)
