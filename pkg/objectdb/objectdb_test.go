package objectdb

import "testing"

type widget struct {
	Base
	Name  string
	Count int
}

func newWidgetIndex() *Index[*widget] {
	return NewIndex(SpaceImplementation, TypeBalance,
		func() *widget { return &widget{} },
		func(w *widget) *widget { cp := *w; return &cp },
	)
}

func TestCreateAssignsSequentialInstances(t *testing.T) {
	db := NewDatabase()
	ix := newWidgetIndex()

	a, err := Create(db, ix, func(w *widget) { w.Name = "a" })
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, err := Create(db, ix, func(w *widget) { w.Name = "b" })
	if err != nil {
		t.Fatalf("create b: %v", err)
	}
	if a.ID().Instance != 0 || b.ID().Instance != 1 {
		t.Fatalf("want instances 0,1, got %d,%d", a.ID().Instance, b.ID().Instance)
	}
	if a.ID().Space != SpaceImplementation || a.ID().Type != TypeBalance {
		t.Fatalf("unexpected id shape %s", a.ID())
	}
}

func TestModifyThenUndoRestoresPriorValue(t *testing.T) {
	db := NewDatabase()
	ix := newWidgetIndex()

	w, err := Create(db, ix, func(w *widget) { w.Name = "orig"; w.Count = 1 })
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sess := db.StartUndoSession()
	Modify(db, ix, w, func(w *widget) { w.Count = 2 })
	if w.Count != 2 {
		t.Fatalf("want count 2 after modify, got %d", w.Count)
	}
	sess.Undo()

	got, ok := Find(ix, w.ID())
	if !ok {
		t.Fatalf("widget missing after undo")
	}
	if got.Count != 1 {
		t.Fatalf("want count restored to 1, got %d", got.Count)
	}
}

func TestCreateThenUndoRemovesEntity(t *testing.T) {
	db := NewDatabase()
	ix := newWidgetIndex()

	sess := db.StartUndoSession()
	w, err := Create(db, ix, func(w *widget) { w.Name = "ephemeral" })
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	sess.Undo()

	if _, ok := Find(ix, w.ID()); ok {
		t.Fatalf("widget should not exist after undoing its creation")
	}
}

func TestRemoveThenUndoReinsertsEntity(t *testing.T) {
	db := NewDatabase()
	ix := newWidgetIndex()

	w, err := Create(db, ix, func(w *widget) { w.Name = "persisted" })
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	sess := db.StartUndoSession()
	Remove(db, ix, w)
	if _, ok := Find(ix, w.ID()); ok {
		t.Fatalf("widget should be gone immediately after Remove")
	}
	sess.Undo()

	got, ok := Find(ix, w.ID())
	if !ok {
		t.Fatalf("widget should be reinstated after undo")
	}
	if got.Name != "persisted" {
		t.Fatalf("want name %q restored, got %q", "persisted", got.Name)
	}
}

func TestNestedSessionsCommitInOrder(t *testing.T) {
	db := NewDatabase()
	ix := newWidgetIndex()

	outer := db.StartUndoSession()
	w, _ := Create(db, ix, func(w *widget) { w.Count = 1 })
	inner := db.StartUndoSession()
	Modify(db, ix, w, func(w *widget) { w.Count = 2 })
	inner.Commit()
	outer.Commit()

	if db.Depth() != 0 {
		t.Fatalf("want depth 0 after both commits, got %d", db.Depth())
	}
	got, _ := Find(ix, w.ID())
	if got.Count != 2 {
		t.Fatalf("want count 2 to survive commits, got %d", got.Count)
	}
}

func TestByKeySecondaryIndexTracksModify(t *testing.T) {
	db := NewDatabase()
	ix := newWidgetIndex()
	byName := NewByKey[string, *widget](ix, func(w *widget) string { return w.Name })

	w, _ := Create(db, ix, func(w *widget) { w.Name = "red" })
	if got := byName.Lookup("red"); len(got) != 1 || got[0] != w.ID() {
		t.Fatalf("want widget filed under %q, got %v", "red", got)
	}

	Modify(db, ix, w, func(w *widget) { w.Name = "blue" })
	if got := byName.Lookup("red"); len(got) != 0 {
		t.Fatalf("want nothing left under %q, got %v", "red", got)
	}
	if got := byName.Lookup("blue"); len(got) != 1 || got[0] != w.ID() {
		t.Fatalf("want widget refiled under %q, got %v", "blue", got)
	}
}

func TestAllocInstanceExhaustion(t *testing.T) {
	ix := newWidgetIndex()
	ix.next = ^uint64(0)
	if _, err := ix.allocInstance(); err != ErrOutOfInstanceIds {
		t.Fatalf("want ErrOutOfInstanceIds, got %v", err)
	}
}
