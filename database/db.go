/*
Copyright 2024 NordLion Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package database

import (
	"database/sql"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/lib/pq"

	"github.com/nordlion/nordlion/config"
	"github.com/nordlion/nordlion/internal/apierror"
)

// Ensure the instance is not accessible outside the package.
var instance *Datasource
var once sync.Once

// uniqueViolation is the Postgres error code for a unique constraint failure.
const uniqueViolation = "23505"

type Datasource struct {
	Conn *sql.DB
}

func NewDataSource(configuration *config.Configuration) (IDataSource, error) {
	con, err := GetDBConnection(configuration)
	if err != nil {
		return nil, err
	}
	return con, nil
}

// GetDBConnection provides a global access point to the instance and initializes it if it's not already.
func GetDBConnection(configuration *config.Configuration) (*Datasource, error) {
	var err error
	once.Do(func() {
		con, errConn := ConnectDB(configuration.DataSource.Dns)
		if errConn != nil {
			err = errConn
			return
		}
		instance = &Datasource{Conn: con}
	})
	if err != nil {
		return nil, err
	}
	if instance == nil {
		return nil, errors.New("database connection was not established")
	}
	return instance, nil
}

// ConnectDB opens a pooled connection and pings the database. Tables are
// created by "nordlion migrate up".
func ConnectDB(dns string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dns)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	err = db.Ping()
	if err != nil {
		log.Printf("database Connection error ❌: %v", err)
		return nil, err
	}
	return db, nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint failure,
// returning the violated constraint name.
func isUniqueViolation(err error) (string, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
		return pqErr.Constraint, true
	}
	return "", false
}

// mapError converts driver errors into API errors for an entity.
func mapError(err error, entity, id string) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return apierror.NewAPIError(apierror.ErrNotFound, entity+" with ID '"+id+"' not found", err)
	default:
		if constraint, ok := isUniqueViolation(err); ok {
			return apierror.NewAPIError(apierror.ErrConflict, entity+" violates unique constraint "+constraint, err)
		}
		return apierror.NewAPIError(apierror.ErrInternalServer, "failed to access "+entity, err)
	}
}
