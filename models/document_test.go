package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsAllowedDocumentExt(t *testing.T) {
	assert.True(t, IsAllowedDocumentExt("proposal.pdf"))
	assert.True(t, IsAllowedDocumentExt("contract.docx"))
	assert.True(t, IsAllowedDocumentExt("pricing.xlsx"))
}

func TestIsAllowedDocumentExtCaseInsensitive(t *testing.T) {
	assert.True(t, IsAllowedDocumentExt("PROPOSAL.PDF"))
	assert.True(t, IsAllowedDocumentExt("Contract.Docx"))
}

func TestIsAllowedDocumentExtRejected(t *testing.T) {
	assert.False(t, IsAllowedDocumentExt("notes.txt"))
	assert.False(t, IsAllowedDocumentExt("archive.zip"))
	assert.False(t, IsAllowedDocumentExt("script.exe"))
	assert.False(t, IsAllowedDocumentExt("proposal"))
	assert.False(t, IsAllowedDocumentExt(""))
}
