// Callisto manages the external providers behind a content-analysis
// service: inference runtimes, identity servers, file storage, and
// knowledge bases.
//
// It keeps a typed catalog of configured providers, wraps every
// outbound call in retry and circuit-breaker protection, probes
// provider health on a schedule, and exposes status, readiness, and
// Prometheus metrics over HTTP.
//
// Usage:
//
//	# Start the service with default configuration
//	callisto run
//
//	# Start with a custom configuration file
//	callisto run --config /etc/callisto/config.yaml
//
//	# Validate a configuration file without starting
//	callisto validate
//
//	# Probe all configured providers once and print a report
//	callisto check --output json
//
//	# Show version information
//	callisto version
package main

func main() {
	Execute()
}
