// SPDX-FileCopyrightText: 2025 SAP SE or an SAP affiliate company
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides fake clients and manifest fixtures shared by the operator's tests.
package testutil
