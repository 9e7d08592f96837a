/*
Package observability provides metrics and structured-logging hooks for agentflow.

Metrics are Prometheus collectors covering the call manager (queue depth,
in-flight calls, durations) and the dispatcher (commands, transitions).
Hooks adapts them into domain.LifecycleHooks so the engine reports through
a single set of callbacks.
*/
package observability
