// Package serializer converts settings objects to and from the generic maps
// that are persisted as files on the appliance. Unserialize is strict about
// types and reports the offending field so a corrupt file can be located.
package serializer
