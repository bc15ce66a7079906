// Package slug turns organization names and email domains into URL-safe
// identifiers.
//
//	slug.Make("Café Society")          // "cafe-society"
//	slug.FromDomain("mail.acme.co.uk") // "acme"
//	slug.OrganizationName("acme.io")   // "Acme"
//
// Diacritics are removed through Unicode decomposition; the registrable
// part of a domain is found with the public suffix list.
package slug
