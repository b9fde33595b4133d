// Copyright 2026 Xynenyx
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import "github.com/xynenyx/fundwire/storage"

// NewMemoryRepositories creates in-memory feed, document and feature
// repositories for testing.
// Returns feedRepo, docRepo, featureRepo, backend, and error.
// Caller must close all repos and the backend when done.
func NewMemoryRepositories() (storage.FeedRepository, storage.DocumentRepository, storage.FeatureRepository, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, nil, err
	}

	feedRepo, err := NewFeedRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, nil, err
	}

	docRepo, err := NewDocumentRepository(backend)
	if err != nil {
		feedRepo.Close()
		backend.Close()
		return nil, nil, nil, nil, err
	}

	featureRepo, err := NewFeatureRepository(backend)
	if err != nil {
		docRepo.Close()
		feedRepo.Close()
		backend.Close()
		return nil, nil, nil, nil, err
	}

	return feedRepo, docRepo, featureRepo, backend, nil
}
