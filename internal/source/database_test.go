package source

import "testing"

func TestIsBinaryType(t *testing.T) {
	binary := []string{"blob", "mediumblob", "varbinary", "binary", "bytea", "image", "raw", "long raw", "bfile"}
	for _, typ := range binary {
		if !isBinaryType(typ) {
			t.Errorf("%s: expected binary", typ)
		}
	}

	textual := []string{"varchar", "int", "datetime", "text", "decimal", ""}
	for _, typ := range textual {
		if isBinaryType(typ) {
			t.Errorf("%s: expected not binary", typ)
		}
	}
}

func TestIsBookkeepingColumn(t *testing.T) {
	if !isBookkeepingColumn("_ref_Account") || !isBookkeepingColumn("_REL_Owner") {
		t.Error("bookkeeping prefixes not detected")
	}
	if isBookkeepingColumn("Name") || isBookkeepingColumn("ref_count") {
		t.Error("regular columns misclassified")
	}
}
