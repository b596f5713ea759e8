// Copyright (c) 2025 Michael D Henderson. All rights reserved.

// Package rows turns raw spreadsheet records into canonical rows.
package rows

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/mdhender/blogbatch/model"
)

// Canonical field names.
const (
	FieldStoreName   = "storeName"
	FieldStoreURL    = "storeURL"
	FieldMainKeyword = "mainKeyword"
	FieldSubKeyword1 = "subKeyword1"
	FieldSubKeyword2 = "subKeyword2"
	FieldSubKeyword3 = "subKeyword3"
)

var subKeywordFields = [model.MaxSubKeywords]string{FieldSubKeyword1, FieldSubKeyword2, FieldSubKeyword3}

// Record is one normalized spreadsheet record.
// Values are string, a numeric type, bool or nil.
type Record map[string]any

// DefaultAliases maps the header variants we know about to canonical names.
// Keys are matched after newline stripping and trimming.
var DefaultAliases = map[string]string{
	"상호명":         FieldStoreName,
	"네이버 플레이스 주소": FieldStoreURL,
	"대표 키워드":      FieldMainKeyword,
	"서브 키워드1":     FieldSubKeyword1,
	"서브 키워드2":     FieldSubKeyword2,
	"서브 키워드3":     FieldSubKeyword3,

	"store name":    FieldStoreName,
	"place url":     FieldStoreURL,
	"store url":     FieldStoreURL,
	"main keyword":  FieldMainKeyword,
	"sub keyword 1": FieldSubKeyword1,
	"sub keyword 2": FieldSubKeyword2,
	"sub keyword 3": FieldSubKeyword3,
}

// Normalizer maps localized headers to canonical field names.
type Normalizer struct {
	aliases map[string]string
}

// NewNormalizer returns a Normalizer using DefaultAliases plus any extra aliases.
// Extra aliases win over the defaults.
func NewNormalizer(extra map[string]string) *Normalizer {
	n := &Normalizer{aliases: make(map[string]string, len(DefaultAliases)+len(extra))}
	for k, v := range DefaultAliases {
		n.aliases[k] = v
	}
	for k, v := range extra {
		n.aliases[cleanString(k)] = v
	}
	return n
}

// Normalize cleans every record. No record is dropped and order is preserved.
// Normalizing already-normalized records returns equal records.
func (n *Normalizer) Normalize(records []map[string]any) []Record {
	out := make([]Record, 0, len(records))
	for _, rec := range records {
		out = append(out, n.NormalizeRecord(rec))
	}
	return out
}

// NormalizeRecord cleans a single record.
//
// When several source keys map to the same canonical name, a key that is
// already the canonical name wins over an alias. Otherwise the first key
// in byte order wins.
func (n *Normalizer) NormalizeRecord(rec map[string]any) Record {
	keys := make([]string, 0, len(rec))
	for key := range rec {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	clean := make(Record, len(rec))
	exact := make(map[string]bool, len(rec))
	for _, key := range keys {
		ck := cleanString(key)
		name := n.canonical(ck)
		isExact := name == ck
		if _, taken := clean[name]; taken && (exact[name] || !isExact) {
			continue
		}
		clean[name] = cleanValue(rec[key])
		exact[name] = isExact
	}
	return clean
}

func (n *Normalizer) canonical(key string) string {
	if name, ok := n.aliases[key]; ok {
		return name
	}
	if name, ok := n.aliases[strings.ToLower(key)]; ok {
		return name
	}
	return key
}

// Normalize cleans records using the default aliases.
func Normalize(records []map[string]any) []Record {
	return NewNormalizer(nil).Normalize(records)
}

// ToRow extracts the canonical fields of a record.
// Missing fields become empty strings.
func ToRow(rec Record) model.Row {
	row := model.Row{
		StoreName:   text(rec[FieldStoreName]),
		StoreURL:    text(rec[FieldStoreURL]),
		MainKeyword: text(rec[FieldMainKeyword]),
	}
	for _, field := range subKeywordFields {
		row.SubKeywords = append(row.SubKeywords, text(rec[field]))
	}
	// drop trailing empties so a row without sub-keywords has none
	for len(row.SubKeywords) > 0 && row.SubKeywords[len(row.SubKeywords)-1] == "" {
		row.SubKeywords = row.SubKeywords[:len(row.SubKeywords)-1]
	}
	return row
}

// ToRows converts every record.
func ToRows(records []Record) []model.Row {
	list := make([]model.Row, 0, len(records))
	for _, rec := range records {
		list = append(list, ToRow(rec))
	}
	return list
}

func cleanString(s string) string {
	s = strings.ReplaceAll(s, "\r", "")
	s = strings.ReplaceAll(s, "\n", "")
	return strings.TrimSpace(s)
}

// cleanValue strips newlines from strings and coerces anything that is not
// a string, number or bool to nil.
func cleanValue(v any) any {
	switch t := v.(type) {
	case string:
		return cleanString(t)
	case bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return t
	}
	return nil
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	default:
		return fmt.Sprint(t)
	}
}
