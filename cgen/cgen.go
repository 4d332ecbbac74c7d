// Package cgen generates Go classes from a DataMap.
//
// For every entity the generator writes a struct with one field per
// attribute to the output package, and a package named after the entity
// holding its name, table, columns and the exp.Path of each property:
//
//	painting.PaintingTitle.Like("S%")
package cgen

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/dave/jennifer/jen"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/cayenne/mapping"
	"github.com/syssam/cayenne/schema/field"
)

const (
	expPkg     = "github.com/syssam/cayenne/exp"
	decimalPkg = "github.com/shopspring/decimal"
	uuidPkg    = "github.com/google/uuid"
	header     = "Code generated by cayenne. DO NOT EDIT."
)

// Generator writes the classes of a DataMap to a directory.
type Generator struct {
	dataMap *mapping.DataMap
	outDir  string
	pkg     string
	workers int
}

// Option configures a Generator.
type Option func(*Generator)

// WithPackage sets the output package name. It defaults to the base name
// of the output directory.
func WithPackage(pkg string) Option {
	return func(g *Generator) {
		if pkg != "" {
			g.pkg = pkg
		}
	}
}

// WithWorkers sets the number of files rendered in parallel.
func WithWorkers(n int) Option {
	return func(g *Generator) {
		if n > 0 {
			g.workers = n
		}
	}
}

// New returns a generator writing to outDir.
func New(m *mapping.DataMap, outDir string, opts ...Option) (*Generator, error) {
	if m == nil {
		return nil, errors.New("cgen: nil data map")
	}
	if outDir == "" {
		return nil, errors.New("cgen: missing output directory")
	}
	g := &Generator{
		dataMap: m,
		outDir:  outDir,
		pkg:     filepath.Base(outDir),
		workers: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate renders and writes all files. Files are written in parallel.
func (g *Generator) Generate(ctx context.Context) error {
	if err := os.MkdirAll(g.outDir, 0o755); err != nil {
		return fmt.Errorf("cgen: create output directory: %w", err)
	}
	errg, ctx := errgroup.WithContext(ctx)
	errg.SetLimit(g.workers)
	for _, e := range g.dataMap.Entities {
		errg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := g.EntityFile(e)
			if err != nil {
				return err
			}
			return g.writeFile(f, "", fileName(e.Name))
		})
		errg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := g.PackageFile(e)
			if err != nil {
				return err
			}
			dir := packageDir(e.Name)
			return g.writeFile(f, dir, dir+".go")
		})
	}
	errg.Go(func() error {
		return g.writeFile(g.HelperFile(), "", "cayenne.go")
	})
	return errg.Wait()
}

func (g *Generator) writeFile(f *jen.File, subdir, name string) error {
	dir := g.outDir
	if subdir != "" {
		dir = filepath.Join(g.outDir, subdir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	out, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		return err
	}
	if err := f.Render(out); err != nil {
		return errors.Join(fmt.Errorf("cgen: render %s: %w", name, err), out.Close())
	}
	return out.Close()
}

func newFile(pkg string) *jen.File {
	f := jen.NewFile(pkg)
	f.HeaderComment(header)
	return f
}

// attribute is an attribute with its generated names.
type attribute struct {
	*mapping.Attribute
	field string
	base  jen.Code
	// pointer reports whether the field is a pointer, i.e. the attribute
	// is nullable.
	pointer bool
}

func (g *Generator) attributes(e *mapping.Entity) ([]attribute, error) {
	attrs := make([]attribute, len(e.Attributes))
	seen := make(map[string]string)
	for i, a := range e.Attributes {
		name := pascal(a.Name)
		if prev, ok := seen[name]; ok {
			return nil, fmt.Errorf("cgen: %s: %q and %q both generate %s", e.Name, prev, a.Name, name)
		}
		seen[name] = a.Name
		base, builtin := goType(a.Type)
		attrs[i] = attribute{
			Attribute: a,
			field:     name,
			base:      base,
			pointer:   builtin != "[]byte" && !a.Mandatory && !a.PrimaryKey,
		}
	}
	return attrs, nil
}

// goType returns the Go type of attribute values of type t, and its name
// when it is a builtin type.
func goType(t field.Type) (jen.Code, string) {
	switch t {
	case field.TypeBool:
		return jen.Bool(), "bool"
	case field.TypeInt, field.TypeInt64:
		return jen.Int64(), "int64"
	case field.TypeFloat64:
		return jen.Float64(), "float64"
	case field.TypeDecimal:
		return jen.Qual(decimalPkg, "Decimal"), ""
	case field.TypeBytes, field.TypeBlob:
		return jen.Index().Byte(), "[]byte"
	case field.TypeDate, field.TypeTime:
		return jen.Qual("time", "Time"), ""
	case field.TypeUUID:
		return jen.Qual(uuidPkg, "UUID"), ""
	default:
		return jen.String(), "string"
	}
}

func (a attribute) fieldType() jen.Code {
	if !a.pointer {
		return a.base
	}
	if _, builtin := goType(a.Type); builtin != "" {
		return jen.Id("*" + builtin)
	}
	return jen.Op("*").Add(a.base)
}

// EntityFile returns the file declaring the struct of an entity.
func (g *Generator) EntityFile(e *mapping.Entity) (*jen.File, error) {
	attrs, err := g.attributes(e)
	if err != nil {
		return nil, err
	}
	name := pascal(e.Name)
	f := newFile(g.pkg)
	f.Commentf("%s is the class of the %s entity.", name, e.Name)
	f.Type().Id(name).StructFunc(func(s *jen.Group) {
		for _, a := range attrs {
			tag := a.Name
			if a.pointer {
				tag += ",omitempty"
			}
			s.Id(a.field).Add(a.fieldType()).Tag(map[string]string{"json": tag})
		}
	})

	f.Comment("ReadProperty returns the value of an attribute. Null attributes read as nil.")
	f.Func().Params(jen.Id("x").Op("*").Id(name)).Id("ReadProperty").
		Params(jen.Id("name").String()).
		Params(jen.Any(), jen.Error()).
		Block(
			jen.Switch(jen.Id("name")).BlockFunc(func(s *jen.Group) {
				for _, a := range attrs {
					if !a.pointer {
						s.Case(jen.Lit(a.Name)).Block(jen.Return(jen.Id("x").Dot(a.field), jen.Nil()))
						continue
					}
					s.Case(jen.Lit(a.Name)).Block(
						jen.If(jen.Id("x").Dot(a.field).Op("==").Nil()).Block(jen.Return(jen.Nil(), jen.Nil())),
						jen.Return(jen.Op("*").Id("x").Dot(a.field), jen.Nil()),
					)
				}
			}),
			jen.Return(jen.Nil(), jen.Qual("fmt", "Errorf").Call(
				jen.Lit("%w: "+e.Name+".%s"),
				jen.Qual(expPkg, "ErrUnknownProperty"),
				jen.Id("name"),
			)),
		)

	from := name + "From"
	f.Commentf("%s reads a %s from the attributes of r, e.g. a DataObject.", from, name)
	f.Func().Id(from).
		Params(jen.Id("r").Qual(expPkg, "PropertyReader")).
		Params(jen.Op("*").Id(name), jen.Error()).
		BlockFunc(func(b *jen.Group) {
			b.Id("x").Op(":=").Op("&").Id(name).Values()
			for _, a := range attrs {
				if !a.pointer {
					b.Var().Err().Error()
					break
				}
			}
			for _, a := range attrs {
				read := jen.Id("read").Types(a.base).Call(jen.Id("r"), jen.Lit(a.Name))
				if !a.pointer {
					b.If(
						jen.List(jen.Id("x").Dot(a.field), jen.Id("_"), jen.Err()).Op("=").Add(read),
						jen.Err().Op("!=").Nil(),
					).Block(jen.Return(jen.Nil(), jen.Err()))
					continue
				}
				b.If(
					jen.List(jen.Id("v"), jen.Id("ok"), jen.Err()).Op(":=").Add(read),
					jen.Err().Op("!=").Nil(),
				).Block(
					jen.Return(jen.Nil(), jen.Err()),
				).Else().If(jen.Id("ok")).Block(
					jen.Id("x").Dot(a.field).Op("=").Op("&").Id("v"),
				)
			}
			b.Return(jen.Id("x"), jen.Nil())
		})
	return f, nil
}

// PackageFile returns the file of the package holding the names and
// property paths of an entity.
func (g *Generator) PackageFile(e *mapping.Entity) (*jen.File, error) {
	attrs, err := g.attributes(e)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	for _, a := range attrs {
		seen[a.field] = true
	}
	for _, r := range e.Relationships {
		if seen[pascal(r.Name)] {
			return nil, fmt.Errorf("cgen: %s: relationship %q clashes with an attribute", e.Name, r.Name)
		}
	}
	pkg := packageDir(e.Name)
	f := newFile(pkg)
	f.PackageComment(fmt.Sprintf("Package %s holds the names and property paths of the %s entity.", pkg, e.Name))
	f.Const().DefsFunc(func(d *jen.Group) {
		d.Comment("EntityName is the name of the entity.")
		d.Id("EntityName").Op("=").Lit(e.Name)
		d.Comment("Table is the table the entity is mapped to.")
		d.Id("Table").Op("=").Lit(e.Table)
		for _, a := range attrs {
			d.Commentf("Column%s holds the column of the %s attribute.", a.field, a.Name)
			d.Id("Column" + a.field).Op("=").Lit(a.Column)
		}
	})
	f.Var().DefsFunc(func(d *jen.Group) {
		for _, a := range attrs {
			d.Commentf("%s is the path of the %s attribute.", a.field, a.Name)
			d.Id(a.field).Op("=").Qual(expPkg, "ObjPath").Call(jen.Lit(a.Name))
		}
		for _, r := range e.Relationships {
			name := pascal(r.Name)
			d.Commentf("%s is the path of the %s relationship.", name, r.Name)
			d.Id(name).Op("=").Qual(expPkg, "ObjPath").Call(jen.Lit(r.Name))
		}
	})
	return f, nil
}

// HelperFile returns the file with the code shared by the classes.
func (g *Generator) HelperFile() *jen.File {
	f := newFile(g.pkg)
	f.Comment("DataMapName is the name of the DataMap the classes were generated from.")
	f.Const().Id("DataMapName").Op("=").Lit(g.dataMap.Name)
	f.Comment("read returns the value of the named property of r as a T.")
	f.Func().Id("read").Types(jen.Id("T").Any()).
		Params(jen.Id("r").Qual(expPkg, "PropertyReader"), jen.Id("name").String()).
		Params(jen.Id("T"), jen.Bool(), jen.Error()).
		Block(
			jen.Var().Id("zero").Id("T"),
			jen.List(jen.Id("v"), jen.Err()).Op(":=").Id("r").Dot("ReadProperty").Call(jen.Id("name")),
			jen.If(jen.Err().Op("!=").Nil().Op("||").Id("v").Op("==").Nil()).Block(
				jen.Return(jen.Id("zero"), jen.False(), jen.Err()),
			),
			jen.List(jen.Id("t"), jen.Id("ok")).Op(":=").Id("v").Assert(jen.Id("T")),
			jen.If(jen.Op("!").Id("ok")).Block(
				jen.Return(jen.Id("zero"), jen.False(), jen.Qual("fmt", "Errorf").Call(
					jen.Lit("reading %s: unexpected %T"), jen.Id("name"), jen.Id("v"),
				)),
			),
			jen.Return(jen.Id("t"), jen.True(), jen.Nil()),
		)
	return f
}
