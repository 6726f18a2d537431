package types

import "testing"

func TestEffectivelyFrozen(t *testing.T) {
	grove := Grove{Status: GroveFrozen}
	if !EffectivelyFrozen(Tree{Status: TreeActive}, grove) {
		t.Fatal("frozen grove without tree subscription must freeze tree")
	}
	if EffectivelyFrozen(Tree{Status: TreeActive, HasOwnSubscription: true}, grove) {
		t.Fatal("tree with its own subscription stays active")
	}
	if EffectivelyFrozen(Tree{Status: TreeActive}, Grove{Status: GroveActive}) {
		t.Fatal("active grove, active tree")
	}
	if !EffectivelyFrozen(Tree{Status: TreeFrozen, HasOwnSubscription: true}, Grove{Status: GroveActive}) {
		t.Fatal("individually frozen tree is frozen regardless of grove")
	}
}

func TestHasCapacity(t *testing.T) {
	if (Grove{TreeLimit: 2, TreeCount: 2}).HasCapacity() {
		t.Fatal("full grove")
	}
	if !(Grove{TreeLimit: 2, TreeCount: 1}).HasCapacity() {
		t.Fatal("headroom")
	}
	if !(Grove{IsOpenGrove: true, TreeLimit: 0, TreeCount: 9000}).HasCapacity() {
		t.Fatal("open grove is never capacity-checked")
	}
}
