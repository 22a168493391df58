// Package setup implements the init-config command, which writes a default
// configuration file and explains what still needs filling in.
package setup
