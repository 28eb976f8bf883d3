/*
SPDX-License-Identifier: Apache-2.0

Copyright 2024 The Tabula Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    https://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package views

import "github.com/google/safehtml"

// LandingViewModel lists the configured tables
type LandingViewModel struct {
	Title       string
	Subtitle    string
	AccountName string // Empty when not scoped to an account
	Tables      []TableInfo
}

// TableInfo is one card of the landing page
type TableInfo struct {
	Name        string
	Title       string
	Description string
	Resource    string // Backend collection, e.g. /api/users
	ColumnCount int
	URL         safehtml.URL
}
