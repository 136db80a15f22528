package irfile

import (
	"fmt"

	"scc/internal/types"
)

var specNames = map[string]types.Spec{
	"void":      types.SpecVoid,
	"char":      types.SpecChar,
	"short":     types.SpecShort,
	"int":       types.SpecInt,
	"long":      types.SpecLong,
	"long long": types.SpecLongLong,
	"struct":    types.SpecStruct,
	"union":     types.SpecUnion,
	"enum":      types.SpecEnum,
}

func parseBasic(d *TypeDecl) (types.Basic, error) {
	var b types.Basic
	switch d.Storage {
	case "":
	case "extern":
		b.Storage = types.StorageExtern
	case "static":
		b.Storage = types.StorageStatic
	default:
		return b, fmt.Errorf("%w: storage %q", ErrBadStmt, d.Storage)
	}
	switch d.Sign {
	case "":
	case "signed":
		b.Sign = types.SignSigned
	case "unsigned":
		b.Sign = types.SignUnsigned
	default:
		return b, fmt.Errorf("%w: sign %q", ErrBadStmt, d.Sign)
	}
	q, err := parseQual(d.Qual)
	if err != nil {
		return b, err
	}
	b.Qual = q
	return b, nil
}

func parseQual(words []string) (types.Qual, error) {
	var q types.Qual
	for _, w := range words {
		switch w {
		case "const":
			q |= types.QualConst
		case "volatile":
			q |= types.QualVolatile
		default:
			return 0, fmt.Errorf("%w: qualifier %q", ErrBadStmt, w)
		}
	}
	return q, nil
}

func (b *builder) declareType(d *TypeDecl) error {
	if d.Name == "" {
		return fmt.Errorf("%w: type without name", ErrBadStmt)
	}
	if _, dup := b.u.typeNames[d.Name]; dup {
		return fmt.Errorf("%w: type %q", ErrDuplicate, d.Name)
	}
	id, err := b.buildType(d)
	if err != nil {
		return err
	}
	b.u.typeNames[d.Name] = id
	b.u.typeOrder = append(b.u.typeOrder, d.Name)
	return nil
}

func (b *builder) buildType(d *TypeDecl) (types.TypeID, error) {
	tt := b.u.Types
	switch d.Kind {
	case "array":
		elem, err := b.typeRef(d.Elem)
		if err != nil {
			return types.NoTypeID, err
		}
		return tt.NewArray(elem, d.Count)
	case "pointer":
		q, err := parseQual(d.Qual)
		if err != nil {
			return types.NoTypeID, err
		}
		elem, err := b.typeRef(d.Elem)
		if err != nil {
			return types.NoTypeID, err
		}
		return tt.NewPointer(elem, q)
	case "function":
		params, err := b.members(d.Params)
		if err != nil {
			return types.NoTypeID, err
		}
		ps := make([]types.ParamSpec, len(params))
		for i, m := range params {
			ps[i] = types.ParamSpec{Name: m.Name, Type: m.Type}
		}
		result, err := b.typeRef(d.Elem)
		if err != nil {
			for _, p := range ps {
				tt.Release(p.Type)
			}
			return types.NoTypeID, err
		}
		return tt.NewFunction(result, ps)
	}

	spec, ok := specNames[d.Kind]
	if !ok {
		return types.NoTypeID, fmt.Errorf("%w: type kind %q", ErrBadStmt, d.Kind)
	}
	basic, err := parseBasic(d)
	if err != nil {
		return types.NoTypeID, err
	}
	basic.Spec = spec
	switch {
	case !spec.IsAggregate():
		return tt.NewBasic(basic)
	case d.Opaque:
		return tt.NewOpaque(basic, d.Tag)
	default:
		fields, err := b.members(d.Fields)
		if err != nil {
			return types.NoTypeID, err
		}
		return tt.NewStruct(basic, d.Tag, fields)
	}
}

// members resolves member types, returning one new handle per member.
func (b *builder) members(ms []Member) ([]types.FieldSpec, error) {
	out := make([]types.FieldSpec, 0, len(ms))
	for _, m := range ms {
		ty, err := b.typeRef(m.Type)
		if err != nil {
			for _, f := range out {
				b.u.Types.Release(f.Type)
			}
			return nil, fmt.Errorf("member %q: %w", m.Name, err)
		}
		out = append(out, types.FieldSpec{Name: m.Name, Type: ty})
	}
	return out, nil
}
