// Copyright (c) 2025 Michael D Henderson. All rights reserved.

package rows_test

import (
	"reflect"
	"testing"

	"github.com/mdhender/blogbatch/pipelines/rows"
)

func TestNormalize_MapsLocalizedHeaders(t *testing.T) {
	input := []map[string]any{
		{
			"상호명\n":          " Cafe\nMoon ",
			"네이버 플레이스 주소":     "https://example.com/place/1",
			"대표\n 키워드":        "brunch",
			"서브 키워드1":         "coffee",
			"서브 키워드2":         nil,
			"서브 키워드3":         "cake",
			"memo":            "keep me",
			"rating":          4.5,
			"open":            true,
			"tags":            []string{"x"},
			" \nextra column ": "pass through",
		},
	}

	got := rows.Normalize(input)
	if len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}
	rec := got[0]

	want := rows.Record{
		rows.FieldStoreName:   "CafeMoon",
		rows.FieldStoreURL:    "https://example.com/place/1",
		rows.FieldMainKeyword: "brunch",
		rows.FieldSubKeyword1: "coffee",
		rows.FieldSubKeyword2: nil,
		rows.FieldSubKeyword3: "cake",
		"memo":                "keep me",
		"rating":              4.5,
		"open":                true,
		"tags":                nil,
		"extra column":        "pass through",
	}

	if !reflect.DeepEqual(rec, want) {
		t.Errorf("normalize:\n got %#v\nwant %#v", rec, want)
	}
}

func TestNormalize_IsIdempotent(t *testing.T) {
	input := []map[string]any{
		{"상호명": "A\n", "대표 키워드": "k1", "서브 키워드1": "s1", "other\n": 3.0},
		{"store name": "B", "place url": " https://b.example ", "flag": false},
		{},
	}

	first := rows.Normalize(input)
	again := make([]map[string]any, len(first))
	for i, rec := range first {
		again[i] = rec
	}
	second := rows.Normalize(again)

	if !reflect.DeepEqual(first, second) {
		t.Errorf("second pass changed records:\nfirst  %#v\nsecond %#v", first, second)
	}
}

func TestNormalize_PreservesOrderAndNeverDrops(t *testing.T) {
	input := []map[string]any{
		{"상호명": "first"},
		{},
		{"unrelated": "x"},
		{"상호명": "last"},
	}
	got := rows.Normalize(input)
	if len(got) != len(input) {
		t.Fatalf("expected %d records, got %d", len(input), len(got))
	}
	if got[0][rows.FieldStoreName] != "first" || got[3][rows.FieldStoreName] != "last" {
		t.Errorf("order not preserved: %v", got)
	}
}

func TestNormalizer_ExtraAliases(t *testing.T) {
	n := rows.NewNormalizer(map[string]string{"Shop": rows.FieldStoreName})
	got := n.NormalizeRecord(map[string]any{"Shop\n": "Bakery"})
	if got[rows.FieldStoreName] != "Bakery" {
		t.Errorf("expected extra alias to map, got %v", got)
	}
}

func TestToRow(t *testing.T) {
	rec := rows.Record{
		rows.FieldStoreName:   "Cafe",
		rows.FieldMainKeyword: 2024.0,
		rows.FieldSubKeyword1: "a",
		rows.FieldSubKeyword2: "",
		rows.FieldSubKeyword3: "c",
	}
	row := rows.ToRow(rec)
	if row.StoreName != "Cafe" {
		t.Errorf("store name: got %q", row.StoreName)
	}
	if row.StoreURL != "" {
		t.Errorf("store url: expected empty, got %q", row.StoreURL)
	}
	if row.MainKeyword != "2024" {
		t.Errorf("main keyword: got %q, want %q", row.MainKeyword, "2024")
	}
	if !reflect.DeepEqual(row.SubKeywords, []string{"a", "", "c"}) {
		t.Errorf("sub keywords: got %q", row.SubKeywords)
	}
	if !reflect.DeepEqual(row.Keywords(), []string{"a", "c"}) {
		t.Errorf("keywords: got %q", row.Keywords())
	}

	empty := rows.ToRow(rows.Record{})
	if len(empty.SubKeywords) != 0 {
		t.Errorf("expected no sub keywords, got %q", empty.SubKeywords)
	}
}

func TestNormalize_CollidingHeadersAreDeterministic(t *testing.T) {
	input := []map[string]any{
		{"상호명": "A", "storeName": "B", "store name": "C", "place url": "P", "store url": "S"},
	}

	for i := 0; i < 100; i++ {
		rec := rows.Normalize(input)[0]
		// the canonical key beats its aliases
		if got := rec[rows.FieldStoreName]; got != "B" {
			t.Fatalf("pass %d: storeName: expected %q, got %v", i, "B", got)
		}
		// between aliases, the first key in byte order wins
		if got := rec[rows.FieldStoreURL]; got != "P" {
			t.Fatalf("pass %d: storeURL: expected %q, got %v", i, "P", got)
		}
		if len(rec) != 2 {
			t.Fatalf("pass %d: expected 2 fields, got %d: %v", i, len(rec), rec)
		}
	}
}
