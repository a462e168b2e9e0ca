package opengauss

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/ekaya-inc/ekaya-pipeline/pkg/config"
	"github.com/ekaya-inc/ekaya-pipeline/pkg/models"
)

// DefaultPort returns the default openGauss port.
func DefaultPort() int {
	return 5432
}

// ConnectionString builds a lib/pq URL. search_path is set when the data source
// names a schema so current_schema() resolves to it.
func ConnectionString(ds models.DataSourceConfig) (string, error) {
	if ds.Host == "" || ds.User == "" || ds.Database == "" {
		return "", fmt.Errorf("data source %s: host, user and database are required", ds.Name)
	}
	port := ds.Port
	if port == 0 {
		port = DefaultPort()
	}

	query := url.Values{}
	query.Set("sslmode", "disable")
	for k, v := range ds.Params {
		query.Set(k, v)
	}
	if ds.Schema != "" {
		query.Set("search_path", ds.Schema)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(ds.User, ds.Password),
		Host:     config.ResolveHostForDocker(ds.Host) + ":" + strconv.Itoa(port),
		Path:     "/" + ds.Database,
		RawQuery: query.Encode(),
	}
	return u.String(), nil
}
