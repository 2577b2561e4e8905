package artifact

import (
	"github.com/DRSN-tech/go-recommender/internal/repository/file"
	"github.com/DRSN-tech/go-recommender/internal/retrieval"
	"github.com/DRSN-tech/go-recommender/internal/usecase"
	"github.com/DRSN-tech/go-recommender/pkg/e"
	"github.com/DRSN-tech/go-recommender/pkg/logger"
	"github.com/jimlawless/whereami"
)

// DirOpener открывает локальный каталог артефакта: загрузчик для проверки и источник файлов для выгрузки.
type DirOpener struct {
	policy retrieval.OOVPolicy
	logger logger.Logger
}

func NewDirOpener(policy retrieval.OOVPolicy, logger logger.Logger) *DirOpener {
	return &DirOpener{
		policy: policy,
		logger: logger,
	}
}

func (d *DirOpener) Open(dir string) (usecase.ModelLoader, usecase.ArtifactSource, error) {
	store, err := file.NewArtifactStore(dir)
	if err != nil {
		return nil, nil, e.Wrap(whereami.WhereAmI(), err)
	}

	return NewLoader(store, d.policy, d.logger), store, nil
}
