package logger

import (
	"go.uber.org/zap"

	"github.com/Anekoique/axvma/pkg/memaddr"
)

func WithSpaceID(spaceID string) zap.Field {
	return zap.String("space.id", spaceID)
}

func WithAddress(addr memaddr.VirtAddr) zap.Field {
	return zap.String("address", addr.String())
}

func WithPage(page memaddr.VirtAddr) zap.Field {
	return zap.String("page", page.String())
}

func WithRange(rng memaddr.Range) zap.Field {
	return zap.String("range", rng.String())
}

func WithPageSize(pageSize memaddr.PageSize) zap.Field {
	return zap.String("page.size", pageSize.String())
}

func WithFileOffset(offset int64) zap.Field {
	return zap.Int64("file.offset", offset)
}
