package mapping

// NestedTypeProcessor 把字段里引用到的嵌套结构体类型（包括结构体切片的元素类型）
// 递归注册到同一个 Registry。
//
// 必须排在 PropertyProcessor 之后，才能看到最终的字段集合。
// 已缓存或正在解析中的类型会被跳过，自引用/环形引用因此可以终止。
type NestedTypeProcessor struct{}

func (NestedTypeProcessor) ApplyMapping(b *Builder) error {
	if b.registry == nil {
		return nil
	}
	seen := make(map[any]struct{})
	for _, f := range b.Fields {
		if f.Kind == KindScalar || f.NestedType == nil {
			continue
		}
		if _, ok := seen[f.NestedType]; ok {
			continue
		}
		seen[f.NestedType] = struct{}{}
		if _, err := b.registry.resolveLocked(f.NestedType); err != nil {
			return err
		}
	}
	return nil
}
