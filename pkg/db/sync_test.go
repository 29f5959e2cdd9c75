package db

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"testing"
	"testing/iotest"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/glorpus-work/alpmdb/pkg/errors"
	"github.com/glorpus-work/alpmdb/pkg/fetch"
	fetchmocks "github.com/glorpus-work/alpmdb/pkg/fetch/mocks"
	"github.com/glorpus-work/alpmdb/pkg/signing"
	signingmocks "github.com/glorpus-work/alpmdb/pkg/signing/mocks"
	"github.com/glorpus-work/alpmdb/test/testutil"
)

func newSyncEnv(t *testing.T) *Env {
	t.Helper()
	root := t.TempDir()
	return &Env{
		RootPath:       root,
		DatabasePath:   filepath.Join(root, "var", "lib", "pacman"),
		SignatureLevel: signing.LevelRequired,
	}
}

func coreMembers(t *testing.T) map[string][]byte {
	return map[string][]byte{
		"bash-5.2.026-2/desc": testutil.SyncDesc("bash", "5.2.026-2",
			testutil.Field{Key: "DEPENDS", Lines: []string{"readline", "glibc"}},
			testutil.Field{Key: "MAKEDEPENDS", Lines: []string{"bison"}},
		).Bytes(t),
		"zlib-1:1.3.1-2/desc": testutil.SyncDesc("zlib", "1:1.3.1-2").Bytes(t),
	}
}

func openCore(t *testing.T, env *Env) *SyncDatabase {
	t.Helper()
	db, err := OpenSync(env, "core", signing.LevelInherit)
	require.NoError(t, err)
	return db
}

func TestOpenSync(t *testing.T) {
	env := newSyncEnv(t)
	db := openCore(t, env)
	assert.Equal(t, "core", db.Name())
	assert.Equal(t, filepath.Join(env.DatabasePath, "sync", "core.db"), db.Path())
	assert.Equal(t, UsageAll, db.Usage())
	assert.Equal(t, signing.LevelInherit, db.SignatureLevel())

	for _, name := range []string{"", "local", "core.db", "../core"} {
		_, err := OpenSync(env, name, signing.LevelInherit)
		assert.ErrorIs(t, err, errors.ErrInvalidDatabaseName, name)
	}

	env.Close()
	_, err := OpenSync(env, "core", signing.LevelInherit)
	assert.ErrorIs(t, err, errors.ErrUseAfterDrop)
}

func TestSyncDatabase_Status(t *testing.T) {
	env := newSyncEnv(t)
	db := openCore(t, env)

	status, err := db.Status()
	require.NoError(t, err)
	assert.Equal(t, StatusMissing, status)

	require.NoError(t, os.MkdirAll(db.Path(), 0o755))
	status, err = db.Status()
	require.NoError(t, err)
	assert.Equal(t, StatusInvalid, status)

	count, err := db.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	require.NoError(t, os.Remove(db.Path()))
	testutil.WriteSyncArchive(t, db.Path(), coreMembers(t))
	status, err = db.Status()
	require.NoError(t, err)
	assert.Equal(t, StatusValid, status)
}

func TestSyncDatabase_Packages(t *testing.T) {
	env := newSyncEnv(t)
	db := openCore(t, env)
	testutil.WriteSyncArchive(t, db.Path(), coreMembers(t))

	count, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	bash, err := db.Latest("bash")
	require.NoError(t, err)
	assert.Equal(t, "core", bash.Database())
	assert.Equal(t, "5.2.026-2", bash.Version().String())
	assert.Equal(t, "bash-5.2.026-2-x86_64.pkg.tar.zst", bash.Filename())
	assert.Equal(t, uint64(512), bash.CompressedSize())
	assert.Equal(t, uint64(2048), bash.InstalledSize())
	assert.Equal(t, []byte{0x00, 0xff, 0x10, 0xab}, bash.SHA256Sum())
	assert.Equal(t, []string{"readline", "glibc"}, bash.Depends())
	assert.Equal(t, []string{"bison"}, bash.MakeDepends())
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), bash.BuildDate())

	zlib, err := db.Package("zlib", "1:1.3.1-2")
	require.NoError(t, err)
	assert.Equal(t, "zlib", zlib.Name())

	_, err = db.Package("zlib", "1.3.1-2")
	assert.ErrorIs(t, err, errors.ErrPackageNotFound)
	_, err = db.Latest("zsh")
	assert.ErrorIs(t, err, errors.ErrPackageNotFound)

	var names []string
	var database Database = db
	require.NoError(t, database.Each(func(p Package) error {
		names = append(names, p.Name())
		return nil
	}))
	assert.Equal(t, []string{"bash", "zlib"}, names)
	assert.Empty(t, db.Problems())
}

func TestSyncDatabase_Problems(t *testing.T) {
	env := newSyncEnv(t)
	db := openCore(t, env)
	members := coreMembers(t)
	members["noversion/desc"] = testutil.SyncDesc("noversion", "1-1").Bytes(t)
	members["foo-1.0-1/desc"] = testutil.SyncDesc("bar", "1.0-1").Bytes(t)
	members["baz-1.0-1/desc"] = []byte("%CSIZE%\nlots\n\n")
	testutil.WriteSyncArchive(t, db.Path(), members)

	count, err := db.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	problems := db.Problems()
	require.Len(t, problems, 3)
	for _, p := range problems {
		assert.ErrorIs(t, p, errors.ErrInvalidSyncPackage)
	}
}

func TestSyncDatabase_DuplicatePackage(t *testing.T) {
	tests := []struct {
		name    string
		members []testutil.TarMember
	}{
		{
			name: "same entry twice",
			members: []testutil.TarMember{
				{Name: "foo-1.0-1/desc", Content: testutil.SyncDesc("foo", "1.0-1").Bytes(t)},
				{Name: "foo-1.0-1/desc", Content: testutil.SyncDesc("foo", "1.0-1").Bytes(t)},
			},
		},
		{
			name: "two versions",
			members: []testutil.TarMember{
				{Name: "foo-1.0-1/desc", Content: testutil.SyncDesc("foo", "1.0-1").Bytes(t)},
				{Name: "foo-2.0-1/desc", Content: testutil.SyncDesc("foo", "2.0-1").Bytes(t)},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newSyncEnv(t)
			db := openCore(t, env)
			testutil.WriteTarGz(t, db.Path(), tt.members)

			_, err := db.Count()
			require.Error(t, err)
			assert.ErrorIs(t, err, &errors.Error{Kind: errors.KindDuplicatePackage, Subject: "foo"})
		})
	}
}

func TestSyncDatabase_Servers(t *testing.T) {
	db := openCore(t, newSyncEnv(t))

	require.NoError(t, db.AddServer("https://mirror.example.org/core/os/x86_64"))
	require.NoError(t, db.AddServer("https://mirror.example.org/core/os/x86_64/"))
	require.NoError(t, db.AddServer("file:///srv/repo"))

	servers := db.Servers()
	require.Len(t, servers, 2)
	assert.Equal(t, "https://mirror.example.org/core/os/x86_64/", servers[0].String())
	assert.Equal(t, "file:///srv/repo/", servers[1].String())

	servers[0].Host = "changed.example.org"
	assert.Equal(t, "mirror.example.org", db.Servers()[0].Host)

	for _, raw := range []string{"not a url", "/srv/repo", "https:///path", "://bad"} {
		err := db.AddServer(raw)
		assert.ErrorIs(t, err, errors.ErrCannotAddServerToDatabase, raw)
	}

	require.NoError(t, db.RemoveServer("https://mirror.example.org/core/os/x86_64"))
	require.NoError(t, db.RemoveServer("https://unknown.example.org/"))
	require.Len(t, db.Servers(), 1)

	db.ClearServers()
	assert.Empty(t, db.Servers())
}

func archiveBytes(t *testing.T, members map[string][]byte) []byte {
	t.Helper()
	path := filepath.Join(t.TempDir(), "core.db")
	testutil.WriteSyncArchive(t, path, members)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return data
}

func okResponse(data []byte, lastModified time.Time) *fetch.Response {
	return &fetch.Response{
		Result:       fetch.ResultOK,
		StatusCode:   200,
		Body:         io.NopCloser(bytes.NewReader(data)),
		LastModified: lastModified,
	}
}

func TestSyncDatabase_Synchronize(t *testing.T) {
	lastModified := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	t.Run("downloads a missing database", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := fetchmocks.NewMockFetcher(ctrl)
		env := newSyncEnv(t)
		env.Fetcher = fetcher
		db := openCore(t, env)
		require.NoError(t, db.AddServer("https://mirror.example.org/core/os/x86_64"))

		data := archiveBytes(t, coreMembers(t))
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, u *url.URL, since time.Time) (*fetch.Response, error) {
				assert.Equal(t, "https://mirror.example.org/core/os/x86_64/core.db", u.String())
				assert.True(t, since.IsZero())
				return okResponse(data, lastModified), nil
			})

		require.NoError(t, db.Synchronize(context.Background(), false))

		written, err := os.ReadFile(db.Path())
		require.NoError(t, err)
		assert.Equal(t, data, written)
		info, err := os.Stat(db.Path())
		require.NoError(t, err)
		assert.True(t, info.ModTime().Equal(lastModified))

		count, err := db.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("conditional request that is not modified", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := fetchmocks.NewMockFetcher(ctrl)
		env := newSyncEnv(t)
		env.Fetcher = fetcher
		db := openCore(t, env)
		require.NoError(t, db.AddServer("https://mirror.example.org/repo"))
		testutil.WriteSyncArchive(t, db.Path(), coreMembers(t))
		require.NoError(t, os.Chtimes(db.Path(), lastModified, lastModified))

		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *url.URL, since time.Time) (*fetch.Response, error) {
				assert.True(t, since.Equal(lastModified))
				return &fetch.Response{Result: fetch.ResultNotModified, StatusCode: 304}, nil
			})

		require.NoError(t, db.Synchronize(context.Background(), false))
		count, err := db.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("forced download replaces the cached packages", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := fetchmocks.NewMockFetcher(ctrl)
		env := newSyncEnv(t)
		env.Fetcher = fetcher
		db := openCore(t, env)
		require.NoError(t, db.AddServer("https://mirror.example.org/repo"))
		testutil.WriteSyncArchive(t, db.Path(), map[string][]byte{
			"acl-2.3.2-1/desc": testutil.SyncDesc("acl", "2.3.2-1").Bytes(t),
		})

		count, err := db.Count()
		require.NoError(t, err)
		require.Equal(t, 1, count)

		data := archiveBytes(t, coreMembers(t))
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, _ *url.URL, since time.Time) (*fetch.Response, error) {
				assert.True(t, since.IsZero())
				return okResponse(data, time.Time{}), nil
			})

		require.NoError(t, db.Synchronize(context.Background(), true))
		count, err = db.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, count)
		_, err = db.Latest("acl")
		assert.ErrorIs(t, err, errors.ErrPackageNotFound)
	})

	t.Run("interrupted download keeps the previous archive", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := fetchmocks.NewMockFetcher(ctrl)
		env := newSyncEnv(t)
		env.Fetcher = fetcher
		db := openCore(t, env)
		require.NoError(t, db.AddServer("https://mirror.example.org/repo"))
		testutil.WriteSyncArchive(t, db.Path(), coreMembers(t))
		require.NoError(t, os.Chtimes(db.Path(), lastModified, lastModified))
		before, err := os.ReadFile(db.Path())
		require.NoError(t, err)

		count, err := db.Count()
		require.NoError(t, err)
		require.Equal(t, 2, count)

		data := archiveBytes(t, map[string][]byte{
			"acl-2.3.2-1/desc": testutil.SyncDesc("acl", "2.3.2-1").Bytes(t),
		})
		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(&fetch.Response{
				Result:     fetch.ResultOK,
				StatusCode: 200,
				Body:       io.NopCloser(io.MultiReader(bytes.NewReader(data[:len(data)/2]), iotest.ErrReader(io.ErrUnexpectedEOF))),
			}, nil)

		err = db.Synchronize(context.Background(), true)
		assert.ErrorIs(t, err, errors.ErrUnexpectedIO)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

		after, err := os.ReadFile(db.Path())
		require.NoError(t, err)
		assert.Equal(t, before, after)
		info, err := os.Stat(db.Path())
		require.NoError(t, err)
		assert.True(t, info.ModTime().Equal(lastModified))

		entries, err := os.ReadDir(filepath.Dir(db.Path()))
		require.NoError(t, err)
		for _, e := range entries {
			assert.NotContains(t, e.Name(), ".tmp")
		}

		count, err = db.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, count)

		reopened := openCore(t, env)
		count, err = reopened.Count()
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("falls through to the next mirror", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := fetchmocks.NewMockFetcher(ctrl)
		env := newSyncEnv(t)
		env.Fetcher = fetcher
		db := openCore(t, env)
		require.NoError(t, db.AddServer("https://first.example.org/repo"))
		require.NoError(t, db.AddServer("https://second.example.org/repo"))

		data := archiveBytes(t, coreMembers(t))
		gomock.InOrder(
			fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, u *url.URL, _ time.Time) (*fetch.Response, error) {
					assert.Equal(t, "first.example.org", u.Host)
					return &fetch.Response{Result: fetch.ResultOther, StatusCode: 404}, nil
				}),
			fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
				DoAndReturn(func(_ context.Context, u *url.URL, _ time.Time) (*fetch.Response, error) {
					assert.Equal(t, "second.example.org", u.Host)
					return okResponse(data, lastModified), nil
				}),
		)

		require.NoError(t, db.Synchronize(context.Background(), false))
		assert.FileExists(t, db.Path())
	})

	t.Run("every mirror unreachable", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := fetchmocks.NewMockFetcher(ctrl)
		env := newSyncEnv(t)
		env.Fetcher = fetcher
		db := openCore(t, env)
		require.NoError(t, db.AddServer("https://first.example.org/repo"))
		require.NoError(t, db.AddServer("https://second.example.org/repo"))

		fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
			Return(nil, io.ErrUnexpectedEOF).Times(2)

		err := db.Synchronize(context.Background(), false)
		assert.ErrorIs(t, err, errors.ErrUnexpectedHTTP)
		assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
		assert.NoFileExists(t, db.Path())
	})

	t.Run("unexpected status everywhere is not an error", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		fetcher := fetchmocks.NewMockFetcher(ctrl)
		env := newSyncEnv(t)
		env.Fetcher = fetcher
		db := openCore(t, env)
		require.NoError(t, db.AddServer("https://first.example.org/repo"))
		require.NoError(t, db.AddServer("https://second.example.org/repo"))

		gomock.InOrder(
			fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, io.ErrUnexpectedEOF),
			fetcher.EXPECT().Fetch(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(&fetch.Response{Result: fetch.ResultOther, StatusCode: 500}, nil),
		)

		require.NoError(t, db.Synchronize(context.Background(), false))
		assert.NoFileExists(t, db.Path())
	})

	t.Run("no servers", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		env := newSyncEnv(t)
		env.Fetcher = fetchmocks.NewMockFetcher(ctrl)
		db := openCore(t, env)

		require.NoError(t, db.Synchronize(context.Background(), false))
	})

	t.Run("no fetcher", func(t *testing.T) {
		db := openCore(t, newSyncEnv(t))
		require.NoError(t, db.AddServer("https://mirror.example.org/repo"))

		err := db.Synchronize(context.Background(), false)
		assert.ErrorIs(t, err, errors.ErrUnexpectedHTTP)
	})
}

func TestSyncDatabase_VerifySignature(t *testing.T) {
	sig := []byte("detached signature")
	writeSigned := func(t *testing.T, db *SyncDatabase, signed bool) {
		testutil.WriteSyncArchive(t, db.Path(), coreMembers(t))
		if signed {
			require.NoError(t, os.WriteFile(signing.SigPath(db.Path()), sig, 0o644))
		}
	}

	tests := []struct {
		name      string
		envLevel  signing.Level
		dbLevel   signing.Level
		signed    bool
		results   []signing.Result
		verifyErr error
		wantErr   error
	}{
		{
			name:     "never checks nothing",
			envLevel: signing.LevelRequired,
			dbLevel:  signing.LevelNever,
		},
		{
			name:     "optional without signature",
			envLevel: signing.LevelOptional,
			dbLevel:  signing.LevelInherit,
		},
		{
			name:     "required without signature",
			envLevel: signing.LevelRequired,
			dbLevel:  signing.LevelInherit,
			wantErr:  errors.ErrSignatureMissing,
		},
		{
			name:     "valid signature",
			envLevel: signing.LevelRequired,
			dbLevel:  signing.LevelInherit,
			signed:   true,
			results:  []signing.Result{{KeyID: "ABCD", Status: signing.StatusValid, Validity: signing.ValidityFull}},
		},
		{
			name:     "marginal key rejected",
			envLevel: signing.LevelOptional,
			dbLevel:  signing.LevelRequired,
			signed:   true,
			results:  []signing.Result{{KeyID: "ABCD", Status: signing.StatusValid, Validity: signing.ValidityMarginal}},
			wantErr:  errors.ErrSignatureIncorrect,
		},
		{
			name:     "marginal key accepted",
			envLevel: signing.LevelRequired,
			dbLevel:  signing.LevelMarginalOK,
			signed:   true,
			results:  []signing.Result{{KeyID: "ABCD", Status: signing.StatusValid, Validity: signing.ValidityMarginal}},
		},
		{
			name:      "verifier failure",
			envLevel:  signing.LevelRequired,
			dbLevel:   signing.LevelInherit,
			signed:    true,
			verifyErr: io.ErrUnexpectedEOF,
			wantErr:   errors.ErrUnexpectedSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			verifier := signingmocks.NewMockVerifier(ctrl)
			env := newSyncEnv(t)
			env.SignatureLevel = tt.envLevel
			env.Verifier = verifier
			db, err := OpenSync(env, "core", tt.dbLevel)
			require.NoError(t, err)
			writeSigned(t, db, tt.signed)

			if tt.signed && tt.dbLevel != signing.LevelNever {
				verifier.EXPECT().Verify(gomock.Any(), db.Path(), sig).Return(tt.results, tt.verifyErr)
			}

			err = db.VerifySignature(context.Background())
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestSyncDatabase_UseAfterClose(t *testing.T) {
	env := newSyncEnv(t)
	db := openCore(t, env)
	testutil.WriteSyncArchive(t, db.Path(), coreMembers(t))
	require.NoError(t, db.AddServer("https://mirror.example.org/repo"))

	env.Close()

	_, err := db.Count()
	assert.ErrorIs(t, err, errors.ErrUseAfterDrop)
	_, err = db.Latest("bash")
	assert.ErrorIs(t, err, errors.ErrUseAfterDrop)
	assert.ErrorIs(t, db.Synchronize(context.Background(), false), errors.ErrUseAfterDrop)
	assert.ErrorIs(t, db.VerifySignature(context.Background()), errors.ErrUseAfterDrop)
}
