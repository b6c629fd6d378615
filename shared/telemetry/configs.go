package telemetry

// Predefined service configurations
var (
	BookingServiceConfig = Config{
		ServiceName:    "booking-service",
		ServiceVersion: "1.0.0",
	}

	TransactionsServiceConfig = Config{
		ServiceName:    "transactions-service",
		ServiceVersion: "1.0.0",
	}
)

// WithOTLPEndpoint sets the OTLP endpoint for a config
func (c Config) WithOTLPEndpoint(endpoint string) Config {
	c.OTLPEndpoint = endpoint
	return c
}

// WithVersion sets the service version for a config
func (c Config) WithVersion(version string) Config {
	if version != "" {
		c.ServiceVersion = version
	}
	return c
}
