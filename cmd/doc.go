// Package cmd implements the command-line interface for zoombulk.
//
// This package provides the following commands:
//   - bulk-create: Create one meeting per row of a CSV or XLSX file
//   - create-meeting: Create a single meeting
//   - users: List the account's users or resolve an email to a user ID
//   - token: Fetch (or refresh) the cached access token
//   - version: Display version information
//
// Settings are read from the environment and an optional .env file; see
// package config for the variables.
package cmd
