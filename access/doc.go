// Package access is the persistence runtime: a DataDomain holds the
// mapping, adapter and driver of a database, and the DataContexts created
// from it track changes to DataObjects and commit them.
//
//	domain, err := access.NewDataDomain(m, drv)
//	if err != nil {
//		return err
//	}
//	ctx := domain.NewContext()
//	artist, _ := ctx.NewObject("Artist")
//	_ = ctx.Set(artist, "artistName", "Dali")
//	if err := ctx.Commit(context.Background()); err != nil {
//		return err
//	}
package access
