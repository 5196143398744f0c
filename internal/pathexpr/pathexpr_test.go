package pathexpr

import "testing"

func TestLookupDottedPath(t *testing.T) {
	doc := map[string]interface{}{
		"a": map[string]interface{}{
			"b": "value",
		},
	}
	v, ok := Lookup(doc, "a.b")
	if !ok || v != "value" {
		t.Fatalf("Lookup(a.b) = %v, %v; want value, true", v, ok)
	}
}

func TestLookupArrayIndex(t *testing.T) {
	doc := map[string]interface{}{
		"items": []interface{}{
			map[string]interface{}{"name": "first"},
			map[string]interface{}{"name": "second"},
		},
	}
	v, ok := Lookup(doc, "items[1].name")
	if !ok || v != "second" {
		t.Fatalf("Lookup(items[1].name) = %v, %v; want second, true", v, ok)
	}
}

func TestLookupNestedArrayIndex(t *testing.T) {
	doc := map[string]interface{}{
		"grid": []interface{}{
			[]interface{}{"a", "b"},
			[]interface{}{"c", "d"},
		},
	}
	v, ok := Lookup(doc, "grid[1][0]")
	if !ok || v != "c" {
		t.Fatalf("Lookup(grid[1][0]) = %v, %v; want c, true", v, ok)
	}
}

func TestLookupOutOfRangeIndex(t *testing.T) {
	doc := map[string]interface{}{"items": []interface{}{"only"}}
	if _, ok := Lookup(doc, "items[5]"); ok {
		t.Error("Lookup() with out-of-range index found = true, want false")
	}
}

func TestLookupMissingKey(t *testing.T) {
	doc := map[string]interface{}{"a": map[string]interface{}{}}
	if _, ok := Lookup(doc, "a.b"); ok {
		t.Error("Lookup() with missing key found = true, want false")
	}
}

func TestLookupMalformedBracket(t *testing.T) {
	doc := map[string]interface{}{"items": []interface{}{"x"}}
	if _, ok := Lookup(doc, "items[abc]"); ok {
		t.Error("Lookup() with non-numeric index found = true, want false")
	}
	if _, ok := Lookup(doc, "items[0"); ok {
		t.Error("Lookup() with unclosed bracket found = true, want false")
	}
}

func TestLookupEmptyPath(t *testing.T) {
	if _, ok := Lookup(map[string]interface{}{}, ""); ok {
		t.Error("Lookup(\"\") found = true, want false")
	}
}
