package connectrpc

import (
	"net/http"

	"connectrpc.com/connect"

	"github.com/eslsoft/intentd/internal/adapter/mapping"
	"github.com/eslsoft/intentd/internal/repository"
	intentdv1 "github.com/eslsoft/intentd/pkg/api/intentd/v1"
)

const _maxPageSize = 1000

func convertPagination(p *intentdv1.PaginationRequest) repository.Pagination {
	pageNo := p.GetPageNo()
	if pageNo <= 0 {
		pageNo = 1
	}
	pageSize := p.GetPageSize()
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > _maxPageSize {
		pageSize = _maxPageSize
	}

	return repository.Pagination{PageNo: pageNo, PageSize: pageSize}
}

// withJSON prepends the JSON codec to handler options.
func withJSON(opts []connect.HandlerOption) []connect.HandlerOption {
	return append([]connect.HandlerOption{connect.WithCodec(mapping.JSONCodec{})}, opts...)
}

// serviceMux routes a service prefix to its procedure handlers.
func serviceMux(service string, routes map[string]http.Handler) (string, http.Handler) {
	return "/" + service + "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h, ok := routes[r.URL.Path]; ok {
			h.ServeHTTP(w, r)
			return
		}
		http.NotFound(w, r)
	})
}
