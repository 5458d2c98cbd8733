/*
Package domain contains the core domain models for agentsh.

It defines the data exchanged between the input router, the AI orchestrator
and the execution engine: proposed Actions and their Steps, the results of
supervised executions, and the error taxonomy for a failed AI interaction.
This package is kept pure and free of I/O so every other layer can depend
on it without cycles.

# Key Entities

  - Action: an AI response classified as a pure answer, a flat command list,
    or a multi-step plan.
  - Step: one atomic shell command with its safety metadata.
  - StepResult: the captured outcome of executing one step.
  - QueryMode: the intent category a user query was issued under.
*/
package domain
