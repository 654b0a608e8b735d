package masterdata

import (
	"github.com/pcr-hr/hr-portal/internal/backend"
	"github.com/pcr-hr/hr-portal/internal/masterdata/query"
)

var createdAtDesc = []query.SortSpec{{ID: "created_at", Desc: true}}

// Departments describes the departemen page.
func Departments() Definition[backend.Department, backend.DepartmentPayload] {
	isActive := func(d backend.Department) bool { return d.IsActive }
	return Definition[backend.Department, backend.DepartmentPayload]{
		Name:     "Departemen",
		Key:      "departments",
		GetRowID: func(d backend.Department) string { return d.ID },
		RowLabel: func(d backend.Department) string { return d.Name },
		IsActive: isActive,
		StatusPayload: func(d backend.Department, next bool) backend.DepartmentPayload {
			return backend.DepartmentPayload{Name: d.Name, Alias: d.Alias, SysCode: d.SysCode, IsActive: next, MajorID: d.MajorID}
		},
		DefaultForm: backend.DepartmentPayload{IsActive: true},
		FormFromEntity: func(d backend.Department) backend.DepartmentPayload {
			return backend.DepartmentPayload{Name: d.Name, Alias: d.Alias, SysCode: d.SysCode, IsActive: d.IsActive, MajorID: nullable(d.MajorID)}
		},
		Columns: []Column[backend.Department]{
			textColumn("name", "Nama", func(d backend.Department) string { return d.Name }),
			textColumn("alias", "Alias", func(d backend.Department) string { return d.Alias }),
			textColumn("sys_code", "Sys Code", func(d backend.Department) string { return d.SysCode }),
			optionalTextColumn("major", "Major ID", func(d backend.Department) *string { return d.MajorID }),
			statusColumn(isActive),
			dateColumn("created_at", "Dibuat", func(d backend.Department) string { return d.CreatedAt }),
		},
		DefaultSort: createdAtDesc,
		Advanced:    true,
		NaturalKey:  func(d backend.Department) string { return d.SysCode },
		SearchFields: func(d backend.Department) []string {
			return []string{d.Name, d.Alias, d.SysCode, deref(d.MajorID)}
		},
	}
}

// StudyPrograms describes the program studi page.
func StudyPrograms() Definition[backend.StudyProgram, backend.StudyProgramPayload] {
	return Definition[backend.StudyProgram, backend.StudyProgramPayload]{
		Name:     "Program Studi",
		Key:      "study-programs",
		GetRowID: func(p backend.StudyProgram) string { return p.ID },
		RowLabel: func(p backend.StudyProgram) string { return p.NamaProdi },
		FormFromEntity: func(p backend.StudyProgram) backend.StudyProgramPayload {
			status := p.StatusProdi
			if status == "" {
				status = query.StatusActive
			}
			return backend.StudyProgramPayload{
				KodeProdi:         p.KodeProdi,
				NamaProdi:         p.NamaProdi,
				AliasProdi:        p.AliasProdi,
				JenjangPendidikan: p.JenjangPendidikan,
				NamaJurusan:       p.NamaJurusan,
				AliasJurusan:      nullable(p.AliasJurusan),
				StatusProdi:       status,
			}
		},
		Columns: []Column[backend.StudyProgram]{
			textColumn("kode_prodi", "Kode", func(p backend.StudyProgram) string { return p.KodeProdi }),
			textColumn("nama_prodi", "Nama Prodi", func(p backend.StudyProgram) string { return p.NamaProdi }),
			textColumn("alias_prodi", "Alias", func(p backend.StudyProgram) string { return p.AliasProdi }),
			selectColumn("jenjang_pendidikan", "Jenjang", func(p backend.StudyProgram) string { return p.JenjangPendidikan }),
			textColumn("nama_jurusan", "Jurusan", func(p backend.StudyProgram) string { return p.NamaJurusan }),
			selectColumn("status_prodi", "Status", func(p backend.StudyProgram) string { return p.StatusProdi }),
		},
		NaturalKey: func(p backend.StudyProgram) string { return p.KodeProdi },
	}
}

// Positions describes the posisi page.
func Positions() Definition[backend.Position, backend.PositionPayload] {
	isActive := func(p backend.Position) bool { return p.IsActive }
	return Definition[backend.Position, backend.PositionPayload]{
		Name:     "Posisi",
		Key:      "positions",
		GetRowID: func(p backend.Position) string { return p.ID },
		RowLabel: func(p backend.Position) string { return p.NamaPosisi },
		IsActive: isActive,
		StatusPayload: func(p backend.Position, next bool) backend.PositionPayload {
			return backend.PositionPayload{NamaPosisi: p.NamaPosisi, AliasPosisi: p.AliasPosisi, SysCode: p.SysCode, IsActive: next}
		},
		DefaultForm: backend.PositionPayload{IsActive: true},
		FormFromEntity: func(p backend.Position) backend.PositionPayload {
			return backend.PositionPayload{NamaPosisi: p.NamaPosisi, AliasPosisi: p.AliasPosisi, SysCode: p.SysCode, IsActive: p.IsActive}
		},
		Columns: []Column[backend.Position]{
			textColumn("nama_posisi", "Nama Posisi", func(p backend.Position) string { return p.NamaPosisi }),
			textColumn("alias_posisi", "Alias", func(p backend.Position) string { return p.AliasPosisi }),
			textColumn("sys_code", "Sys Code", func(p backend.Position) string { return p.SysCode }),
			statusColumn(isActive),
		},
		NaturalKey: func(p backend.Position) string { return p.SysCode },
	}
}

// EmployeeClasses describes the kelas pegawai page.
func EmployeeClasses() Definition[backend.EmployeeClass, backend.EmployeeClassPayload] {
	return Definition[backend.EmployeeClass, backend.EmployeeClassPayload]{
		Name:     "Kelas Pegawai",
		Key:      "employee-classes",
		GetRowID: func(k backend.EmployeeClass) string { return k.ID },
		RowLabel: func(k backend.EmployeeClass) string { return k.KelasPegawai },
		FormFromEntity: func(k backend.EmployeeClass) backend.EmployeeClassPayload {
			return backend.EmployeeClassPayload{KelasPegawai: k.KelasPegawai, RefJumlahCuti: k.RefJumlahCuti, IsLembur: k.IsLembur}
		},
		Columns: []Column[backend.EmployeeClass]{
			textColumn("kelas", "Kelas Pegawai", func(k backend.EmployeeClass) string { return k.KelasPegawai }),
			numberColumn("ref_cuti", "Ref. Jumlah Cuti", func(k backend.EmployeeClass) *int { return k.RefJumlahCuti }),
			booleanColumn("lembur", "Lembur", func(k backend.EmployeeClass) bool { return k.IsLembur }),
		},
	}
}

// Activities describes the aktivitas page.
func Activities() Definition[backend.Activity, backend.ActivityPayload] {
	isActive := func(a backend.Activity) bool { return a.IsActive }
	return Definition[backend.Activity, backend.ActivityPayload]{
		Name:     "Aktivitas",
		Key:      "activities",
		GetRowID: func(a backend.Activity) string { return a.ID },
		RowLabel: func(a backend.Activity) string { return a.NamaAktivitas },
		IsActive: isActive,
		StatusPayload: func(a backend.Activity, next bool) backend.ActivityPayload {
			status := query.StatusInactive
			if next {
				status = query.StatusActive
			}
			return backend.ActivityPayload{KodeAktivitas: a.KodeAktivitas, NamaAktivitas: a.NamaAktivitas, StatusAktivitas: status, IsActive: next}
		},
		DefaultForm: backend.ActivityPayload{StatusAktivitas: query.StatusActive, IsActive: true},
		FormFromEntity: func(a backend.Activity) backend.ActivityPayload {
			status := query.StatusActive
			if a.StatusAktivitas == query.StatusInactive {
				status = query.StatusInactive
			}
			return backend.ActivityPayload{KodeAktivitas: a.KodeAktivitas, NamaAktivitas: a.NamaAktivitas, StatusAktivitas: status, IsActive: a.IsActive}
		},
		Columns: []Column[backend.Activity]{
			textColumn("kode", "Kode", func(a backend.Activity) string { return a.KodeAktivitas }),
			textColumn("nama", "Nama Aktivitas", func(a backend.Activity) string { return a.NamaAktivitas }),
			statusColumn(isActive),
		},
	}
}

// LeaveQuotas describes the jumlah cuti page.
func LeaveQuotas() Definition[backend.LeaveQuota, backend.LeaveQuotaPayload] {
	return Definition[backend.LeaveQuota, backend.LeaveQuotaPayload]{
		Name:     "Jumlah Cuti",
		Key:      "leave-quotas",
		GetRowID: func(q backend.LeaveQuota) string { return q.ID },
		FormFromEntity: func(q backend.LeaveQuota) backend.LeaveQuotaPayload {
			return backend.LeaveQuotaPayload{JumlahCuti: q.JumlahCuti, Keterangan: nullable(q.Keterangan)}
		},
		Columns: []Column[backend.LeaveQuota]{
			numberColumn("jumlah", "Jumlah Cuti", func(q backend.LeaveQuota) *int { return &q.JumlahCuti }),
			optionalTextColumn("keterangan", "Keterangan", func(q backend.LeaveQuota) *string { return q.Keterangan }),
		},
	}
}

// EmploymentBonds describes the ikatan kerja page.
func EmploymentBonds() Definition[backend.EmploymentBond, backend.EmploymentBondPayload] {
	isActive := func(b backend.EmploymentBond) bool { return b.IsActive }
	return Definition[backend.EmploymentBond, backend.EmploymentBondPayload]{
		Name:     "Ikatan Kerja",
		Key:      "employment-bonds",
		GetRowID: func(b backend.EmploymentBond) string { return b.ID },
		RowLabel: func(b backend.EmploymentBond) string { return b.NamaIkatanKerja },
		IsActive: isActive,
		StatusPayload: func(b backend.EmploymentBond, next bool) backend.EmploymentBondPayload {
			return backend.EmploymentBondPayload{
				KodeIkatanKerja: b.KodeIkatanKerja,
				NamaIkatanKerja: b.NamaIkatanKerja,
				Organisasi:      b.Organisasi,
				SysCode:         b.SysCode,
				IsActive:        next,
			}
		},
		DefaultForm: backend.EmploymentBondPayload{IsActive: true},
		FormFromEntity: func(b backend.EmploymentBond) backend.EmploymentBondPayload {
			return backend.EmploymentBondPayload{
				KodeIkatanKerja: b.KodeIkatanKerja,
				NamaIkatanKerja: b.NamaIkatanKerja,
				Organisasi:      b.Organisasi,
				SysCode:         b.SysCode,
				IsActive:        b.IsActive,
			}
		},
		Columns: []Column[backend.EmploymentBond]{
			textColumn("kode", "Kode", func(b backend.EmploymentBond) string { return b.KodeIkatanKerja }),
			textColumn("nama", "Nama Ikatan Kerja", func(b backend.EmploymentBond) string { return b.NamaIkatanKerja }),
			textColumn("organisasi", "Organisasi", func(b backend.EmploymentBond) string { return b.Organisasi }),
			statusColumn(isActive),
		},
	}
}

// Employees describes the karyawan page.
func Employees() Definition[backend.Employee, backend.EmployeePayload] {
	return Definition[backend.Employee, backend.EmployeePayload]{
		Name:     "Karyawan",
		Key:      "employees",
		GetRowID: func(e backend.Employee) string { return e.ID },
		RowLabel: func(e backend.Employee) string { return e.NamaDisplay },
		FormFromEntity: func(e backend.Employee) backend.EmployeePayload {
			return backend.EmployeePayload{
				NIP:            e.NIP,
				Inisial:        e.Inisial,
				NamaDisplay:    e.NamaDisplay,
				TitlePrefix:    nullable(e.TitlePrefix),
				TitleSuffix:    nullable(e.TitleSuffix),
				ProgramStudiID: e.ProgramStudiID,
				DepartmentID:   e.DepartmentID,
				PositionID:     e.PositionID,
			}
		},
		Columns: []Column[backend.Employee]{
			textColumn("nip", "NIP", func(e backend.Employee) string { return e.NIP }),
			textColumn("inisial", "Inisial", func(e backend.Employee) string { return e.Inisial }),
			textColumn("nama_display", "Nama", func(e backend.Employee) string { return e.NamaDisplay }),
			selectColumn("program", "Program Studi", func(e backend.Employee) string { return e.ProgramStudiID }),
			selectColumn("department", "Departemen", func(e backend.Employee) string { return e.DepartmentID }),
			selectColumn("position", "Posisi", func(e backend.Employee) string { return e.PositionID }),
		},
		ListFilters: []string{backend.FilterProgramStudiID, backend.FilterDepartmentID, backend.FilterPositionID},
	}
}

// Services describes the layanan page.
func Services() Definition[backend.Service, backend.ServicePayload] {
	isActive := func(s backend.Service) bool { return s.IsActive }
	return Definition[backend.Service, backend.ServicePayload]{
		Name:        "Service",
		Key:         "services",
		GetRowID:    func(s backend.Service) string { return s.ID },
		RowLabel:    func(s backend.Service) string { return s.Name },
		IsActive:    isActive,
		DefaultForm: backend.ServicePayload{IsActive: true},
		FormFromEntity: func(s backend.Service) backend.ServicePayload {
			return backend.ServicePayload{
				SysCode:        s.SysCode,
				Name:           s.Name,
				DepartmentID:   s.DepartmentID,
				RequesterScope: s.RequesterScope,
				Description:    s.Description,
				IsActive:       s.IsActive,
			}
		},
		Columns: []Column[backend.Service]{
			textColumn("sys_code", "Kode", func(s backend.Service) string { return s.SysCode }),
			textColumn("name", "Nama", func(s backend.Service) string { return s.Name }),
			selectColumn("department_id", "Departemen", func(s backend.Service) string { return s.DepartmentID }),
			selectColumn("requester_scope", "Requester Scope", func(s backend.Service) string { return s.RequesterScope }),
			statusColumn(isActive),
		},
	}
}
