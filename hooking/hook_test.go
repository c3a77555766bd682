package hooking

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type countingHook struct {
	items []any
}

func (h *countingHook) Func(ctx HookCtx) {
	h.items = append(h.items, ctx.Item)
}

var _ = Describe("HookableBase", func() {
	var (
		base *HookableBase
		pos  *HookPos
	)

	BeforeEach(func() {
		base = NewHookableBase()
		pos = &HookPos{Name: "Test"}
	})

	It("should invoke hooks in registration order", func() {
		var order []string

		base.AcceptHook(HookFunc(func(HookCtx) { order = append(order, "a") }))
		base.AcceptHook(HookFunc(func(HookCtx) { order = append(order, "b") }))

		base.InvokeHook(HookCtx{Domain: base, Pos: pos})

		Expect(order).To(Equal([]string{"a", "b"}))
		Expect(base.NumHooks()).To(Equal(2))
	})

	It("should pass the item to the hook", func() {
		hook := &countingHook{}
		base.AcceptHook(hook)

		base.InvokeHook(HookCtx{Domain: base, Pos: pos, Item: 42})

		Expect(hook.items).To(Equal([]any{42}))
	})

	It("should panic when the same hook is registered twice", func() {
		hook := &countingHook{}
		base.AcceptHook(hook)

		Expect(func() { base.AcceptHook(hook) }).To(Panic())
	})
})
