// Package backend registriert alle eingebauten Tensor-Backends
package backend

import (
	_ "github.com/graphgps/gps/ml/backend/cpu"
)
