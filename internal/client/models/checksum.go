package models

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Checksum fingerprints the integrity-relevant part of u.
//
// The canonical text is exactly what JSON.stringify emits for
// {username, role, subscription, accessibleEntities (sorted), strikes,
// hasCompletedTour}, and the fold runs over its UTF-16 code units with 32-bit
// wrap-around, so checksums written by the browser client verify here and
// the other way round. Negative results keep their sign: "-1a2b".
func Checksum(u *User) string {
	return foldHash(canonicalRecord(u))
}

func canonicalRecord(u *User) string {
	var b strings.Builder
	b.WriteString(`{"username":`)
	writeJSString(&b, u.Username)
	b.WriteString(`,"role":`)
	writeJSString(&b, string(u.Role))
	b.WriteString(`,"subscription":`)
	writeJSString(&b, string(u.Subscription))
	b.WriteString(`,"accessibleEntities":[`)
	for i, id := range sortedByCodeUnits(u.AccessibleEntities) {
		if i > 0 {
			b.WriteByte(',')
		}
		writeJSString(&b, id)
	}
	b.WriteString(`],"strikes":`)
	b.WriteString(strconv.Itoa(u.Strikes))
	// undefined members vanish from JSON.stringify output
	if u.HasCompletedTour != nil {
		b.WriteString(`,"hasCompletedTour":`)
		b.WriteString(strconv.FormatBool(*u.HasCompletedTour))
	}
	b.WriteByte('}')
	return b.String()
}

func foldHash(s string) string {
	var h int32
	for _, c := range utf16.Encode([]rune(s)) {
		h = (h << 5) - h + int32(c)
	}
	return strconv.FormatInt(int64(h), 16)
}

// sortedByCodeUnits orders like Array.prototype.sort with no comparator.
func sortedByCodeUnits(ids []string) []string {
	out := slices.Clone(ids)
	slices.SortFunc(out, func(a, b string) int {
		return slices.Compare(utf16.Encode([]rune(a)), utf16.Encode([]rune(b)))
	})
	return out
}

// writeJSString quotes s the way JSON.stringify does. encoding/json differs
// on U+2028, U+2029 and the HTML-sensitive characters.
func writeJSString(b *strings.Builder, s string) {
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\b':
			b.WriteString(`\b`)
		case '\f':
			b.WriteString(`\f`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(b, `\u%04x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
}
