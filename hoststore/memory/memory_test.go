package memory

import (
	"testing"

	"xdao.co/candep/hoststore"
	"xdao.co/candep/hoststore/testkit"
)

func TestMemoryStoreConformance(t *testing.T) {
	testkit.RunStoreConformance(t, func(t *testing.T) hoststore.Store {
		return New()
	})
}
