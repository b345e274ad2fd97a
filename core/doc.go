// Package core defines the shared data model of agentrun: the tagged Value
// variant used for tool parameters and results, the conversation Message
// types exchanged with language-model backends, and identifier generation.
// All types are plain data; behavior lives in the engine, tool and backend
// packages.
package core
