// Package services contains the core business logic, free of adapter
// concerns. Services depend on driven ports and implement driving ones.
package services
