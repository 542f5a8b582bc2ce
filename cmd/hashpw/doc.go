// Command hashpw manages the password that protects the converter.
//
// Usage:
//
//	hashpw <command>
//
// Commands:
//
//	hash    Prompt for a password twice (without echo) and print its bcrypt
//	        hash. Put the output in AUTH_PASSWORD_HASH to enable HTTP basic
//	        auth. When stdin is not a terminal, one line is read instead.
//
//	status  Report whether AUTH_PASSWORD_HASH is set and holds a usable
//	        bcrypt hash.
//
// Environment:
//
//	AUTH_PASSWORD_HASH - bcrypt hash checked by the status command
package main
