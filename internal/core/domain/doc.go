// Package domain holds the JsonKeep core model: StoreInfo descriptors
// with their persistence and snapshot policies, APIKey records with
// role-based permissions, and the DomainError type carrying the
// JK-AREA-NNNN error codes every surface reports.
//
// Nothing here touches IO; entities validate themselves and the
// service layer is the only place they are loaded or persisted.
//
// @req RQ-0101
// @design DS-0101
package domain
