package publisher

import (
	"context"
	"path"
	"strings"

	"github.com/syntrixbase/switchboard/internal/core/topic"
	"github.com/syntrixbase/switchboard/pkg/model"
)

const invalidNameChars = `/\:*?"<>|`

func (p *Publisher) CreateDirectory(ctx context.Context, parent, name string) (*model.FileEntry, error) {
	return p.createEntry(ctx, "CreateDirectory", parent, name, &model.FileEntry{Type: model.EntryDirectory})
}

// UploadFile records the metadata of a stored file. File content is kept
// outside this service.
func (p *Publisher) UploadFile(ctx context.Context, parent, name string, size int64, mimeType string) (*model.FileEntry, error) {
	if size < 0 {
		return nil, badInput("file size is negative")
	}
	return p.createEntry(ctx, "UploadFile", parent, name, &model.FileEntry{
		Type:     model.EntryFile,
		Size:     size,
		MimeType: mimeType,
	})
}

func (p *Publisher) createEntry(ctx context.Context, op, parent, name string, entry *model.FileEntry) (*model.FileEntry, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	dir := model.CleanPath(parent)
	if err := p.requireDirectory(ctx, dir); err != nil {
		return nil, err
	}
	if err := p.checkFree(ctx, dir, name); err != nil {
		return nil, err
	}

	now := p.now()
	entry.ID = p.newID()
	entry.Name = name
	entry.Path = path.Join(dir, name)
	entry.OwnerID = id.UserID
	entry.CreatedAt = now
	entry.UpdatedAt = now
	if err := p.store.InsertEntry(ctx, entry); err != nil {
		return nil, err
	}

	p.publish(ctx, op, entry, topic.FS(dir))
	return entry, nil
}

// MoveEntry moves an entry into the directory dest. Both the old and the new
// parent directory are notified.
func (p *Publisher) MoveEntry(ctx context.Context, entryID, dest string) (*model.FileEntry, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	entry, err := p.modifiableEntry(ctx, id.UserID, id.IsAdmin(), entryID, "move")
	if err != nil {
		return nil, err
	}

	dest = model.CleanPath(dest)
	oldDir := entry.ParentPath()
	if dest == entry.Path || strings.HasPrefix(dest, entry.Path+"/") {
		return nil, badInput("cannot move %s into itself", entry.Path)
	}
	if err := p.requireDirectory(ctx, dest); err != nil {
		return nil, err
	}
	if err := p.checkFree(ctx, dest, entry.Name); err != nil {
		return nil, err
	}
	if err := p.checkLeaf(ctx, entry); err != nil {
		return nil, err
	}

	entry.Path = path.Join(dest, entry.Name)
	entry.UpdatedAt = p.now()
	if err := p.store.UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}

	p.publish(ctx, "MoveEntry", entry, uniq([]string{topic.FS(oldDir), topic.FS(dest)})...)
	return entry, nil
}

func (p *Publisher) RenameEntry(ctx context.Context, entryID, name string) (*model.FileEntry, error) {
	id, err := caller(ctx)
	if err != nil {
		return nil, err
	}
	if err := checkName(name); err != nil {
		return nil, err
	}
	entry, err := p.modifiableEntry(ctx, id.UserID, id.IsAdmin(), entryID, "rename")
	if err != nil {
		return nil, err
	}
	if entry.Name == name {
		return entry, nil
	}

	dir := entry.ParentPath()
	if err := p.checkFree(ctx, dir, name); err != nil {
		return nil, err
	}
	if err := p.checkLeaf(ctx, entry); err != nil {
		return nil, err
	}

	entry.Name = name
	entry.Path = path.Join(dir, name)
	entry.UpdatedAt = p.now()
	if err := p.store.UpdateEntry(ctx, entry); err != nil {
		return nil, err
	}

	p.publish(ctx, "RenameEntry", entry, topic.FS(dir))
	return entry, nil
}

// DeleteEntry marks an entry deleted. Directories must be empty.
func (p *Publisher) DeleteEntry(ctx context.Context, entryID string) error {
	id, err := caller(ctx)
	if err != nil {
		return err
	}
	entry, err := p.modifiableEntry(ctx, id.UserID, id.IsAdmin(), entryID, "delete")
	if err != nil {
		return err
	}
	if err := p.checkLeaf(ctx, entry); err != nil {
		return err
	}

	entry.Deleted = true
	entry.UpdatedAt = p.now()
	if err := p.store.UpdateEntry(ctx, entry); err != nil {
		return err
	}

	p.publish(ctx, "DeleteEntry", entry, topic.FS(entry.ParentPath()))
	return nil
}

func (p *Publisher) modifiableEntry(ctx context.Context, userID string, admin bool, entryID, action string) (*model.FileEntry, error) {
	entry, err := p.store.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry.Deleted {
		return nil, model.NewError(model.KindNotFound, "entry %s not found", entryID)
	}
	if !admin && entry.OwnerID != userID {
		return nil, model.NewError(model.KindForbidden, "user %s may not %s %s", userID, action, entry.Path)
	}
	return entry, nil
}

// requireDirectory checks that dir names a live directory. The root always exists.
func (p *Publisher) requireDirectory(ctx context.Context, dir string) error {
	if dir == "/" {
		return nil
	}
	siblings, err := p.store.ListEntries(ctx, model.ParentOf(dir))
	if err != nil {
		return err
	}
	for _, e := range siblings {
		if e.Path != dir {
			continue
		}
		if e.Type != model.EntryDirectory {
			return badInput("%s is not a directory", dir)
		}
		return nil
	}
	return model.NewError(model.KindNotFound, "directory %s not found", dir)
}

func (p *Publisher) checkFree(ctx context.Context, dir, name string) error {
	entries, err := p.store.ListEntries(ctx, dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name == name {
			return badInput("%s already exists", path.Join(dir, name))
		}
	}
	return nil
}

// checkLeaf rejects directories that still have children. Entry paths are
// stored whole, so a populated directory cannot change path in one commit.
func (p *Publisher) checkLeaf(ctx context.Context, entry *model.FileEntry) error {
	if entry.Type != model.EntryDirectory {
		return nil
	}
	children, err := p.store.ListEntries(ctx, entry.Path)
	if err != nil {
		return err
	}
	if len(children) > 0 {
		return badInput("directory %s is not empty", entry.Path)
	}
	return nil
}

func checkName(name string) error {
	if name == "" || name == "." || name == ".." {
		return badInput("invalid name %q", name)
	}
	if strings.ContainsAny(name, invalidNameChars) {
		return badInput("name %q contains invalid characters", name)
	}
	return nil
}
