package cart

import "testing"

func item(key, price string) LineItem {
	return LineItem{ProductKey: key, ProductPrice: price}
}

func TestAddItemMergesByProductKey(t *testing.T) {
	c := New("s1")
	c.AddItem(item("Headphones", "$10.00"))
	c.AddItem(item("Headphones", "$10.00"))
	c.AddItem(item("Charger", "$5.00"))

	if len(c.Lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(c.Lines))
	}
	if c.Lines[0].Quantity != 2 {
		t.Fatalf("expected merged quantity 2, got %d", c.Lines[0].Quantity)
	}
	if c.ItemCount() != 3 {
		t.Fatalf("expected item count 3, got %d", c.ItemCount())
	}
}

func TestAddItemPreservesInsertionOrder(t *testing.T) {
	c := New("s1")
	c.AddItem(item("b", "$1.00"))
	c.AddItem(item("a", "$2.00"))
	c.AddItem(item("b", "$1.00"))

	if c.Lines[0].ProductKey != "b" || c.Lines[1].ProductKey != "a" {
		t.Fatalf("insertion order not preserved: %+v", c.Lines)
	}
}

func TestRemoveItemAbsentKeyIsNoop(t *testing.T) {
	c := New("s1")
	c.AddItem(item("a", "$1.00"))
	c.RemoveItem("missing")

	if len(c.Lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(c.Lines))
	}
}

func TestSetQuantity(t *testing.T) {
	t.Run("updates existing line", func(t *testing.T) {
		c := New("s1")
		c.AddItem(item("a", "$1.00"))
		if !c.SetQuantity("a", 5) {
			t.Fatal("expected SetQuantity to report success")
		}
		if c.Lines[0].Quantity != 5 {
			t.Fatalf("expected quantity 5, got %d", c.Lines[0].Quantity)
		}
	})

	t.Run("zero removes the line", func(t *testing.T) {
		c := New("s1")
		c.AddItem(item("a", "$1.00"))
		if !c.SetQuantity("a", 0) {
			t.Fatal("expected SetQuantity to report success")
		}
		if !c.IsEmpty() {
			t.Fatal("expected empty cart")
		}
	})

	t.Run("negative clamps to zero and removes", func(t *testing.T) {
		c := New("s1")
		c.AddItem(item("a", "$1.00"))
		c.SetQuantity("a", -3)
		if !c.IsEmpty() {
			t.Fatal("expected empty cart after negative quantity")
		}
	})

	t.Run("absent key reports false", func(t *testing.T) {
		c := New("s1")
		if c.SetQuantity("missing", 2) {
			t.Fatal("expected false for absent key")
		}
	})
}

func TestUpsertReAddsRemovedLine(t *testing.T) {
	c := New("s1")
	c.AddItem(item("a", "$1.00"))
	c.RemoveItem("a")

	c.Upsert(item("a", "$1.00"), 3)
	if len(c.Lines) != 1 || c.Lines[0].Quantity != 3 {
		t.Fatalf("expected re-added line with quantity 3, got %+v", c.Lines)
	}
}

func TestUpsertNonPositiveQuantityDoesNotAdd(t *testing.T) {
	c := New("s1")
	c.Upsert(item("a", "$1.00"), 0)
	if !c.IsEmpty() {
		t.Fatal("expected cart to stay empty")
	}
}

func TestSnapshotIsImmutableCopy(t *testing.T) {
	c := New("s1")
	li := item("a", "$1.00")
	li.ImageRefs = []string{"img1"}
	c.AddItem(li)

	snap := c.Snapshot()
	c.SetQuantity("a", 9)
	c.Lines[0].ImageRefs[0] = "changed"

	if snap.Lines[0].Quantity != 1 {
		t.Fatalf("snapshot quantity mutated: %d", snap.Lines[0].Quantity)
	}
	if snap.Lines[0].ImageRefs[0] != "img1" {
		t.Fatal("snapshot image refs share backing array with cart")
	}
}

func TestFingerprintTracksContent(t *testing.T) {
	c := New("s1")
	c.AddItem(item("a", "$1.00"))
	before := c.Fingerprint()

	if got := c.Fingerprint(); got != before {
		t.Fatal("fingerprint not stable for unchanged cart")
	}

	c.SetQuantity("a", 2)
	if got := c.Fingerprint(); got == before {
		t.Fatal("fingerprint unchanged after quantity edit")
	}
}

func TestClear(t *testing.T) {
	c := New("s1")
	c.AddItem(item("a", "$1.00"))
	c.AddItem(item("b", "$2.00"))
	c.Clear()

	if !c.IsEmpty() || c.ItemCount() != 0 {
		t.Fatal("expected cleared cart")
	}
}
