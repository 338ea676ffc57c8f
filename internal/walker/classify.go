package walker

import (
	"github.com/mvp-joe/pykg/internal/api"
	"github.com/mvp-joe/pykg/internal/introspect"
)

// KindOf decides a record kind from the object's category. Functions found
// on a class (owner != nil) are member functions.
func KindOf(obj *introspect.Object, owner *string) api.Kind {
	switch obj.Category {
	case introspect.CategoryModule:
		return api.KindModule
	case introspect.CategoryClass:
		return api.KindClass
	case introspect.CategoryFunction:
		if owner != nil {
			return api.KindMemberFunction
		}
		return api.KindFunction
	default:
		return api.KindUnknown
	}
}

// Classify builds the record for obj discovered under id. Missing facts
// degrade to their defaults: signature "()", no source, no file.
func Classify(id string, obj *introspect.Object, owner *string) *api.Record {
	kind := KindOf(obj, owner)

	var params *api.Parameters
	if kind.IsCallable() && obj.Parameters != nil {
		params = api.NewParameters()
		for _, p := range obj.Parameters {
			params.Set(p.Name, api.ParamInfo{IsOptional: p.HasDefault})
		}
	}

	moduleName := obj.Module
	if kind == api.KindModule {
		moduleName = obj.Name
	}

	return api.NewRecord(id, kind, api.RecordOptions{
		Doc:         obj.Doc,
		SourceText:  obj.Source,
		Signature:   obj.Signature,
		Parameters:  params,
		OwningClass: owner,
		ModuleName:  moduleName,
		SourceFile:  obj.File,
	})
}
