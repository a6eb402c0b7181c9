// Package application runs the service startup sequence. It ensures the
// artifacts directory exists, executes each startup step through Guard so any
// failure (including a panic) is wrapped with the step and source location,
// logs that failure, and always logs the shutdown notice last. A cancelled
// context is reported the same way, as a *ServiceError for the step it stopped.
package application
