// Package template renders the configuration files reconcilers write.
//
// Templates are Go text/template sources extended with the sprig function
// library (quote, default, join, indent and friends). Rendering is pure:
// the same data always yields the same bytes, which is what lets the
// commit layer skip unchanged files.
package template
