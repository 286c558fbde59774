// internal/store/candidateindex.go
package store

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"fostermatch/internal/common/errors"
	"fostermatch/internal/common/logger"
	"fostermatch/internal/models"
)

// maxIndexedCandidates caps one search page. The eligible pool for a single
// jurisdiction fits well under this.
const maxIndexedCandidates = 5000

// CandidateIndex narrows the family candidate pool through the search index
// before rows are loaded from Postgres. The index holds a projection of the
// families table keyed by family id.
type CandidateIndex struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func NewCandidateIndex(client *elasticsearch.Client, index string, log logger.Logger) *CandidateIndex {
	return &CandidateIndex{client: client, index: index, logger: log}
}

// SearchEligibleFamilyIDs returns the ids of families whose licensing,
// background check, and training are all current.
func (ci *CandidateIndex) SearchEligibleFamilyIDs(ctx context.Context) ([]string, error) {
	queryBody := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"licenseStatus": models.LicenseStatusActive},
					},
					map[string]interface{}{
						"term": map[string]interface{}{"backgroundCheckStatus": models.BackgroundCheckStatusClear},
					},
					map[string]interface{}{
						"term": map[string]interface{}{"trainingStatus": models.TrainingStatusCompleted},
					},
				},
			},
		},
		"_source": false,
	}

	body, _ := json.Marshal(queryBody)
	size := maxIndexedCandidates
	req := esapi.SearchRequest{
		Index: []string{ci.index},
		Body:  strings.NewReader(string(body)),
		Size:  &size,
	}

	res, err := req.Do(ctx, ci.client)
	if err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewSearchQueryFailedError(
			&searchStatusError{status: res.Status()})
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID string `json:"_id"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewSearchQueryFailedError(err)
	}

	ids := make([]string, 0, len(parsed.Hits.Hits))
	for _, hit := range parsed.Hits.Hits {
		ids = append(ids, hit.ID)
	}
	return ids, nil
}

type searchStatusError struct {
	status string
}

func (e *searchStatusError) Error() string {
	return "search returned status " + e.status
}
