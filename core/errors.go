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


package core

import "errors"

// Domain validation errors
var (
	// ErrInvalidDocument indicates a Document failed validation.
	ErrInvalidDocument = errors.New("invalid document")

	// ErrInvalidFeed indicates a Feed failed validation.
	ErrInvalidFeed = errors.New("invalid feed")

	// ErrInvalidStatus indicates an invalid DocumentStatus value.
	ErrInvalidStatus = errors.New("invalid document status")

	// ErrEmptyContent indicates the RawContent field is empty.
	ErrEmptyContent = errors.New("content cannot be empty")

	// ErrEmptyFeedURL indicates the feed URL field is empty.
	ErrEmptyFeedURL = errors.New("feed URL cannot be empty")

	// ErrEntityNameRejected indicates an extracted entity name failed the
	// quality rules (denylist match, too short, stopwords only, too long).
	ErrEntityNameRejected = errors.New("entity name rejected")

	// ErrAmountImplausible indicates a funding amount failed the
	// plausibility guard (above the valuation ceiling).
	ErrAmountImplausible = errors.New("funding amount implausible")

	// ErrExtractedInvariant indicates a document claims extracted features
	// while not being in the ready state.
	ErrExtractedInvariant = errors.New("features extracted on a non-ready document")
)
