/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package storage implements local layout persistence and the offline index.
// It creates, opens and saves layout.json with transactional writes and timestamped backups,
// recovering from the newest backup when the file is damaged.
// The SQLite index at <root>/.wmap/index.sqlite stores layouts, shapes and stock per address
// so the editor and the map server can run without PostgreSQL.
package storage
