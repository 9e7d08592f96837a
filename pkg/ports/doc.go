/*
Package ports defines the driven ports (interfaces) of agentflow.

These interfaces decouple the core from external implementations, allowing
the dispatcher and call manager to work with various storage backends,
LLM providers and event consumers.

# Key Interfaces

  - SessionStore: Persists and loads session documents.
  - DistributedLocker: Serializes access to a session across processes.
  - EventSink: Receives the completion/error events of queued calls.
  - Completer: The LLM boundary used by analysis commands.
*/
package ports
