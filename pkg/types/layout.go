package types

// Layout describes the size and alignment of a type's bit pattern, exactly
// as computed once at registration time the way the teacher's codegen
// package precomputed C struct layout before emission.
type Layout struct {
	Size  uintptr
	Align uintptr
}

// align rounds offset up to the next multiple of alignment. alignment must
// be a power of two (as every primitive/struct alignment here is).
func align(offset, alignment uintptr) uintptr {
	if alignment == 0 {
		return offset
	}
	return (offset + alignment - 1) &^ (alignment - 1)
}

// computeFieldOffsets assigns byte offsets to fields in declaration order
// using standard C-like alignment rules, and returns the resulting struct
// layout. Offsets never move once assigned: the registry interns a type
// exactly once and all BorrowField/Structure/Destructure operations rely on
// these offsets being stable for the type's lifetime.
func computeFieldOffsets(fields []*Field) Layout {
	var offset uintptr
	var maxAlign uintptr = 1
	for _, f := range fields {
		fa := f.Type.Layout.Align
		if fa == 0 {
			fa = 1
		}
		offset = align(offset, fa)
		f.Offset = offset
		offset += f.Type.Layout.Size
		if fa > maxAlign {
			maxAlign = fa
		}
	}
	size := align(offset, maxAlign)
	if size == 0 {
		size = 0
	}
	return Layout{Size: size, Align: maxAlign}
}

// EnumLayout computes the layout of an enum: a one-byte discriminant at
// offset 0 (Open Question (b): this is the convention SPEC_FULL.md fixes),
// followed by the widest variant's payload aligned immediately after it.
func EnumLayout(variants []*Struct) Layout {
	var maxAlign uintptr = 1
	var maxPayload uintptr
	for _, v := range variants {
		va := v.Layout.Align
		if va == 0 {
			va = 1
		}
		if va > maxAlign {
			maxAlign = va
		}
		payloadStart := align(1, va)
		total := payloadStart + v.Layout.Size
		if total > maxPayload {
			maxPayload = total
		}
	}
	size := align(maxPayload, maxAlign)
	if size < 1 {
		size = 1
	}
	return Layout{Size: size, Align: maxAlign}
}

// VariantPayloadOffset returns the byte offset at which variant's payload
// begins within the enum's byte buffer: the first multiple of the variant's
// own alignment after the one-byte discriminant.
func VariantPayloadOffset(variant *Struct) uintptr {
	va := variant.Layout.Align
	if va == 0 {
		va = 1
	}
	return align(1, va)
}
