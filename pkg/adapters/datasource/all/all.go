// Package all links every database dialect into the binary.
package all

import (
	_ "github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource/mysql"
	_ "github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource/opengauss"
	_ "github.com/ekaya-inc/ekaya-pipeline/pkg/adapters/datasource/postgres"
)
