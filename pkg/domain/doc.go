/*
Package domain contains the core types shared by the agentflow packages.

It is kept free of I/O and persistence concerns. Adapters and the runtime
packages depend on it, never the other way around.

# Key Entities

  - Task: A long-running call queued on the call manager, correlated by InputID.
  - CallEvent: The single completion or error notification produced per Task.
  - SessionData: The persisted session document (shared data plus per-screen data).
  - LifecycleHooks: Observability callbacks for transitions, commands and calls.
*/
package domain
