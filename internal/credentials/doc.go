// Package credentials reads flat key/value sections out of INI files.
//
// Parsing follows configparser conventions so that files shared with other
// pipeline tooling read the same way: option names are lowercased, section
// names stay case-sensitive, "=" and ":" both delimit values, "#" and ";"
// start comments, "%(name)s" interpolates another option and keys from
// [DEFAULT] are inherited by every section.
//
// Errors are never swallowed here. A missing file or section is returned to
// the caller, which decides whether it is fatal.
package credentials
