// Package commands implements the dmctl command tree.
package commands
