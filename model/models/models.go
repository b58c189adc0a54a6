// Package models registriert alle Netzwerke, Encoder und Koepfe
package models

import (
	_ "github.com/graphgps/gps/model/encoders"
	_ "github.com/graphgps/gps/model/heads"
	_ "github.com/graphgps/gps/model/models/gps"
)
