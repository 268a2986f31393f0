// Package cli implements the gophauth command-line client: one command per
// invocation, talking to the AccountService over gRPC and printing the reply
// as JSON.
package cli
