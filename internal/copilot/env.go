// Package copilot reads the environment AWS Copilot injects into services.
package copilot

import (
	"fmt"
	"os"
)

// ServiceName returns "app-env-svc" when running under Copilot, or
// fallback otherwise.
func ServiceName(fallback string) string {
	app, env, svc := App(), Environment(), Service()
	if app == "" || env == "" || svc == "" {
		return fallback
	}

	return fmt.Sprintf("%s-%s-%s", app, env, svc)
}

func App() string {
	return os.Getenv("COPILOT_APPLICATION_NAME")
}

func Environment() string {
	return os.Getenv("COPILOT_ENVIRONMENT_NAME")
}

func Service() string {
	return os.Getenv("COPILOT_SERVICE_NAME")
}

// QueueURI is the URL of a worker service's default SQS queue.
func QueueURI() string {
	return os.Getenv("COPILOT_QUEUE_URI")
}

// ServiceEndpoint is the service-discovery URL of another service in the
// same Copilot environment.
func ServiceEndpoint(svc string, port int) string {
	return fmt.Sprintf("http://%s.%s.%s.local:%d", svc, Environment(), App(), port)
}
