// Package common provides shared logging, configuration, and error-mapping
// utilities used by every binary in the txproxy module.
package common

// Version is the current version of the txproxy module.
const Version = "0.1.0"
